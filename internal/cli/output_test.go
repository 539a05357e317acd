package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shibuya/kanshi/internal/models"
)

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != OutputText {
		t.Errorf("empty should default to text, got %v %v", f, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != OutputJSON {
		t.Errorf("got %v %v", f, err)
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteSignalsText(t *testing.T) {
	var buf bytes.Buffer
	signals := []models.Signal{{
		Source:       "reddit",
		Type:         "post",
		AuthorHandle: "someone",
		Text:         "pricing complaint",
		URL:          "https://example.com/p",
		Timestamp:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}}
	if err := WriteSignals(&buf, signals, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"1 signal(s)", "[reddit/post]", "by someone", "https://example.com/p", "pricing complaint"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestWriteSignalsJSON(t *testing.T) {
	var buf bytes.Buffer
	signals := []models.Signal{{Source: "rss", Type: "news", Text: "x", Timestamp: time.Now()}}
	if err := WriteSignals(&buf, signals, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded []models.Signal
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Source != "rss" {
		t.Errorf("unexpected round trip: %+v", decoded)
	}
}

func TestWriteChatReply(t *testing.T) {
	var buf bytes.Buffer
	msg := &models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: "pricing chatter is up",
		Sources: []models.Citation{
			{Type: models.CitationExternal, Title: "reddit", URL: "https://example.com", Snippet: "s"},
		},
	}
	if err := WriteChatReply(&buf, msg, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "pricing chatter is up") || !strings.Contains(out, "1. [external] reddit") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestWriteVolume(t *testing.T) {
	var buf bytes.Buffer
	buckets := []models.VolumeBucket{
		{Bucket: "2026-03-02", Count: 4, Source: "reddit"},
	}
	if err := WriteVolume(&buf, buckets, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "2026-03-02 reddit") || !strings.Contains(buf.String(), "4") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
