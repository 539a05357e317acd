// Package knowledge manages the reference knowledge base: chunking, embedding,
// document lifecycle, and semantic search.
package knowledge

import (
	"regexp"
	"strings"
)

// Chunking parameters. Boundaries prefer sentence ends within the last 100
// characters of a chunk, then word breaks within the last 50.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	sentenceLookback = 100
	wordLookback     = 50
)

var sentenceEnd = regexp.MustCompile(`[.!?\n]\s`)

// Chunk is one piece of a chunked text with its position in the source.
type Chunk struct {
	Text      string
	Index     int
	StartChar int
	EndChar   int
}

// ChunkText splits text into overlapping chunks for embedding. Whitespace-only
// input yields no chunks. Progress is strictly positive even when the overlap
// would step backwards.
func ChunkText(text string, chunkSize, overlap int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}

	var chunks []Chunk
	start := 0
	index := 0
	lastStart := -1

	for start < len(text) {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}

		if end < len(text) {
			lookbackStart := end - sentenceLookback
			if lookbackStart < start {
				lookbackStart = start
			}
			segment := text[lookbackStart:end]
			if locs := sentenceEnd.FindAllStringIndex(segment, -1); locs != nil {
				last := locs[len(locs)-1]
				if last[0] > 0 {
					end = lookbackStart + last[0] + 2
				}
			} else if end-wordLookback >= 0 {
				segment := text[end-wordLookback : end]
				if lastSpace := strings.LastIndex(segment, " "); lastSpace > 0 {
					end = end - wordLookback + lastSpace
				}
			}
		}

		piece := strings.TrimSpace(text[start:end])
		if piece != "" {
			chunks = append(chunks, Chunk{Text: piece, Index: index, StartChar: start, EndChar: end})
			index++
			lastStart = start
		}

		start = end - overlap
		if start <= lastStart {
			start = end
		}
	}
	return chunks
}

// EstimateTokens approximates token count as one token per 4 characters,
// rounded up.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
