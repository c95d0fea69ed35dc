package content

// ProfileType is the node type isolated into its own chunk so that profile
// pods can be laid out in columns starting from index zero.
const ProfileType = "featuredProfile"

// ChunkGroup is a contiguous run of sibling nodes grouped for layout. An
// accordion chunk always contains exactly one node.
type ChunkGroup struct {
	Nodes        []Node
	IsAccordion  bool
	IsFirstChunk bool
}

// Chunk splits a flat children list into layout chunks in a single
// left-to-right pass. Profile nodes toggle a type-boundary mode that starts a
// new chunk whenever the node type changes; nodes with an accordion or tabs
// layout are isolated into standalone chunks. The type-boundary rule is
// checked before the layout rule, so a profile node with an accordion layout
// is treated as a type boundary. Chunking never fails; nodes with no type
// simply never match the profile type.
func Chunk(children []Node) []ChunkGroup {
	var chunks []ChunkGroup
	var current []Node
	breakOnTypeChange := false
	lastType := ""

	for _, child := range children {
		switch {
		case (breakOnTypeChange && child.Type != lastType) || (!breakOnTypeChange && child.Type == ProfileType):
			breakOnTypeChange = !breakOnTypeChange
			if len(current) > 0 {
				chunks = append(chunks, ChunkGroup{Nodes: current})
			}
			current = []Node{child}
		case child.Layout == "accordion" || child.Layout == "tabs":
			if len(current) > 0 {
				chunks = append(chunks, ChunkGroup{Nodes: current})
			}
			chunks = append(chunks, ChunkGroup{
				Nodes:        []Node{child},
				IsAccordion:  true,
				IsFirstChunk: len(chunks) == 0,
			})
			current = nil
		default:
			current = append(current, child)
		}
		lastType = child.Type
	}

	if len(current) > 0 {
		chunks = append(chunks, ChunkGroup{Nodes: current})
	}
	return chunks
}
