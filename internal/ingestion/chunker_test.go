package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText_Empty(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "\n\n\t  \n"} {
		if got := SplitText(input, 800, 100); got != nil {
			t.Errorf("SplitText(%q) = %v, want nil", input, got)
		}
	}
}

func TestSplitText_ShortTextIsSingleChunk(t *testing.T) {
	t.Parallel()

	got := SplitText("a brief note", 800, 100)
	if len(got) != 1 || got[0] != "a brief note" {
		t.Errorf("got %v, want one chunk with the full text", got)
	}
}

func TestSplitText_RespectsSizeBound(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("lorem ipsum dolor sit amet. ", 200)
	chunks := SplitText(text, 800, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 800 {
			t.Errorf("chunk %d has %d runes, want <= 800", i, n)
		}
	}
}

func TestSplitText_NeverSplitsMultibyteRunes(t *testing.T) {
	t.Parallel()

	// Every rune is multi-byte, so any byte-indexed split would corrupt it.
	text := strings.Repeat("日本語のテキストです。", 400)
	chunks := SplitText(text, 500, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
		if strings.Contains(c, string(utf8.RuneError)) {
			t.Errorf("chunk %d contains a replacement rune", i)
		}
	}
}

func TestSplitText_PrefersParagraphBreak(t *testing.T) {
	t.Parallel()

	first := strings.Repeat("a", 700)
	second := strings.Repeat("b", 700)
	chunks := SplitText(first+"\n\n"+second, 800, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected at least two chunks, got %d", len(chunks))
	}
	if chunks[0] != first {
		t.Errorf("first chunk has %d runes and trailing %q, want the first paragraph only",
			len([]rune(chunks[0])), chunks[0][len(chunks[0])-1:])
	}
}

func TestSplitText_PrefersSentenceEnd(t *testing.T) {
	t.Parallel()

	first := strings.Repeat("a", 698) + ". "
	second := strings.Repeat("b", 700)
	chunks := SplitText(first+second, 800, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected at least two chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Errorf("first chunk ends %q, want a sentence boundary", chunks[0][len(chunks[0])-10:])
	}
}

func TestSplitText_OverlapCarriesText(t *testing.T) {
	t.Parallel()

	// Uniform text with no boundaries forces hard cuts, so the overlap
	// window is carried verbatim into the next chunk.
	text := strings.Repeat("x", 2000)
	chunks := SplitText(text, 800, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	var total int
	for _, c := range chunks {
		total += len([]rune(c))
	}
	if total <= 2000 {
		t.Errorf("total chunk runes = %d, want > 2000 when overlap duplicates text", total)
	}
}
