package ingest

import (
	"strings"
	"testing"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w" + string(rune('a'+i%26))
	}
	return strings.Join(parts, " ")
}

func TestChunkWords_ShortTextIsOneChunk(t *testing.T) {
	got := ChunkWords("press f2 during boot", 400, 50)
	if len(got) != 1 || got[0] != "press f2 during boot" {
		t.Errorf("ChunkWords() = %v, want single chunk", got)
	}
}

func TestChunkWords_Empty(t *testing.T) {
	if got := ChunkWords("   \n ", 400, 50); got != nil {
		t.Errorf("ChunkWords() = %v, want nil", got)
	}
}

func TestChunkWords_OverlapWindows(t *testing.T) {
	text := words(100)
	got := ChunkWords(text, 40, 10)

	// step 30: windows [0,40) [30,70) [60,100)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	for i, c := range got[:2] {
		if n := len(strings.Fields(c)); n != 40 {
			t.Errorf("chunk %d has %d words, want 40", i, n)
		}
	}

	// The last 10 words of one chunk are the first 10 of the next.
	first := strings.Fields(got[0])
	second := strings.Fields(got[1])
	if strings.Join(first[30:], " ") != strings.Join(second[:10], " ") {
		t.Error("chunks do not overlap")
	}

	// Every word is retained.
	if n := len(strings.Fields(got[2])); n != 40 {
		t.Errorf("last chunk has %d words, want 40", n)
	}
}
