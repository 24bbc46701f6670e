package service

// DefaultChunkWindow is the default chunk size in characters.
const DefaultChunkWindow = 1500

// ChunkConfig controls how documents are split before embedding.
type ChunkConfig struct {
	WindowChars int
}

// DefaultChunkConfig returns the ingestion chunking defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{WindowChars: DefaultChunkWindow}
}

// ChunkText splits text into consecutive, non-overlapping windows of
// cfg.WindowChars characters. Concatenating the pieces yields the input.
// Empty input yields no pieces.
func ChunkText(text string, cfg ChunkConfig) []string {
	if text == "" {
		return nil
	}
	window := cfg.WindowChars
	if window <= 0 {
		window = DefaultChunkWindow
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/window+1)
	for start := 0; start < len(runes); start += window {
		end := min(start+window, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
