package knowledge

import (
	"strings"
	"testing"
)

func TestChunkText_Empty(t *testing.T) {
	if got := ChunkText("", 1000, 200); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
	if got := ChunkText("   \n\t ", 1000, 200); got != nil {
		t.Errorf("expected nil for whitespace text, got %v", got)
	}
}

func TestChunkText_SingleChunk(t *testing.T) {
	chunks := ChunkText("short text", 1000, 200)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short text" || chunks[0].Index != 0 {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}

func TestChunkText_OverlapAndProgress(t *testing.T) {
	text := strings.Repeat("word ", 1000) // 5000 chars
	chunks := ChunkText(text, 1000, 200)

	if len(chunks) < 5 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if len(c.Text) > 1000 {
			t.Errorf("chunk %d exceeds size: %d", i, len(c.Text))
		}
		if i > 0 && c.StartChar <= chunks[i-1].StartChar {
			t.Errorf("chunk %d did not advance: %d after %d", i, c.StartChar, chunks[i-1].StartChar)
		}
	}
}

func TestChunkText_SentenceBoundary(t *testing.T) {
	// A sentence end lands inside the lookback window; the chunk should break
	// just after it instead of mid-word.
	text := strings.Repeat("a", 940) + ". " + strings.Repeat("b", 500)
	chunks := ChunkText(text, 1000, 200)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, ".") {
		t.Errorf("expected first chunk to end at sentence boundary, got ...%q", chunks[0].Text[len(chunks[0].Text)-10:])
	}
}

func TestChunkText_NoBoundaryTerminates(t *testing.T) {
	// Pathological input with no sentence ends or spaces must still terminate.
	text := strings.Repeat("x", 5000)
	chunks := ChunkText(text, 1000, 200)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	total := 0
	for _, c := range chunks {
		total += len(c.Text)
	}
	if total < 5000 {
		t.Errorf("chunks should cover the input, covered %d", total)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}
