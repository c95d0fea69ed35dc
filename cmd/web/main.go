package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"learnpage/internal/app"
	"learnpage/internal/db"
	"learnpage/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()

	dbConn, err := db.OpenPostgresWithConfig(context.Background(), cfg.DBDSN, db.PostgresConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifeMins) * time.Minute,
	})
	if err != nil {
		log.Printf("database error: %v", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.EnsureSchema(context.Background(), dbConn); err != nil {
		log.Printf("schema error: %v", err)
		os.Exit(1)
	}

	recorder := telemetry.NewRecorder(dbConn, cfg.TelemetryBuffer)
	defer recorder.Close()

	r := app.NewRouter(cfg, dbConn, recorder)

	log.Printf("learnpage web listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
