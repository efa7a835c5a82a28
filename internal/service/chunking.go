package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls server-side chunking of registered document text.
type ChunkConfig struct {
	MaxChars  int
	MinChars  int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  1200,
		MinChars:  400,
		Overlap:   200,
		MaxChunks: 40,
	}
}

// chunkText splits document text into context chunks. Paragraph boundaries
// are preferred; a paragraph that alone exceeds MaxChars is split at
// whitespace with Overlap carried between the pieces so a cited passage is
// never cut mid-claim.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	if len([]rune(clean)) <= cfg.MaxChars {
		return []string{clean}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, para := range strings.Split(clean, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			return chunks
		}

		if current.Len() > 0 && current.Len()+len(para)+2 > cfg.MaxChars {
			flush()
		}

		if len([]rune(para)) > cfg.MaxChars {
			flush()
			for _, piece := range splitOversized(para, cfg) {
				if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
					return chunks
				}
				chunks = append(chunks, piece)
			}
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	if cfg.MaxChunks > 0 && len(chunks) > cfg.MaxChunks {
		chunks = chunks[:cfg.MaxChunks]
	}
	return chunks
}

// splitOversized cuts a single overlong paragraph at whitespace, backing off
// from the hard limit down to MinChars before giving up and cutting mid-word.
func splitOversized(para string, cfg ChunkConfig) []string {
	runes := []rune(para)
	var pieces []string

	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end >= len(runes) {
			pieces = append(pieces, strings.TrimSpace(string(runes[start:])))
			break
		}

		cut := end
		floor := start + cfg.MinChars
		if floor > end {
			floor = start
		}
		for i := end; i > floor; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}

		piece := strings.TrimSpace(string(runes[start:cut]))
		if piece != "" {
			pieces = append(pieces, piece)
		}

		next := cut
		if cfg.Overlap > 0 && cut-start > cfg.Overlap {
			next = cut - cfg.Overlap
		}
		if next <= start {
			next = cut
		}
		start = next
	}

	return pieces
}
