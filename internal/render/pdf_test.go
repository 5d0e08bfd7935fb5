package render

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderPDFProducesDocument(t *testing.T) {
	src := []byte("#include <stdio.h>\n\nint main() {\n\treturn 0;\n}\n")

	var buf bytes.Buffer
	if err := RenderPDF(src, "alpha", "main.c", &buf); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	if buf.Len() == 0 {
		t.Fatal("expected non-empty output")
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("expected pdf header, got %q", buf.Bytes()[:8])
	}
}

func TestRenderPDFEmptyTeamStillRenders(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPDF([]byte("hello"), "  ", "notes.py", &buf); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("expected pdf header")
	}
}

func TestRenderPDFEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPDF(nil, "alpha", "empty.c", &buf); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a one-page document for empty input")
	}
}

func TestRenderPDFManyPagesGrows(t *testing.T) {
	var one, many bytes.Buffer
	if err := RenderPDF([]byte("x"), "alpha", "a.c", &one); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if err := RenderPDF([]byte(strings.Repeat("some line of code\n", 500)), "alpha", "b.c", &many); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if many.Len() <= one.Len() {
		t.Errorf("expected multi-page output to be larger: %d vs %d", many.Len(), one.Len())
	}
}

func TestRenderPDFInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderPDF([]byte{0xff, 0xfe, 'a', '\n', 0x00}, "alpha", "blob.c", &buf); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("expected pdf header")
	}
}
