package content

import "strings"

// ResolveAssetSrc resolves an authored image source to a URL the client can
// fetch. Absolute and already-served sources pass through unchanged; anything
// else is relative to the content image base path.
func ResolveAssetSrc(basePath, src string) string {
	if src == "" {
		return ""
	}
	if strings.Contains(src, "http") || strings.Contains(src, "/assets/") {
		return src
	}
	return strings.TrimRight(basePath, "/") + "/" + strings.TrimLeft(src, "/")
}
