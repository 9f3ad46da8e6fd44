package extract

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestText_PlainText(t *testing.T) {
	t.Parallel()

	got, err := Text("notes.txt", []byte("hello world"))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestText_Markdown(t *testing.T) {
	t.Parallel()

	got, err := Text("README.md", []byte("# title\n\nbody"))
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(got, "body") {
		t.Errorf("got %q", got)
	}
}

func TestText_StripsBOM(t *testing.T) {
	t.Parallel()

	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("content")...)
	got, err := Text("bom.txt", data)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != "content" {
		t.Errorf("got %q, want BOM removed", got)
	}
}

func TestText_RejectsInvalidUTF8(t *testing.T) {
	t.Parallel()

	if _, err := Text("bad.txt", []byte{0xFF, 0xFE, 0x00}); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}

func TestText_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"image.png", "sheet.xlsx", "noext"} {
		if _, err := Text(name, []byte("x")); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Text(%q): want ErrUnsupportedType, got %v", name, err)
		}
	}
}

func TestText_SizeCeiling(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("a"), MaxFileSize+1)
	if _, err := Text("big.txt", data); !errors.Is(err, ErrTooLarge) {
		t.Errorf("want ErrTooLarge, got %v", err)
	}
}

func TestText_CorruptPDF(t *testing.T) {
	t.Parallel()

	if _, err := Text("broken.pdf", []byte("not a pdf at all")); err == nil {
		t.Fatal("expected error for corrupt pdf")
	}
}
