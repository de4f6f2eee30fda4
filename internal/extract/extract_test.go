package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTextPlain(t *testing.T) {
	got, err := Text(context.Background(), []byte("Alice\n5 years Go"), "txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Alice\n5 years Go" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestTextPlainInvalidUTF8(t *testing.T) {
	_, err := Text(context.Background(), []byte{0xff, 0xfe, 0x41}, "txt")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestTextDocxParagraphs(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>Alice Smith</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t xml:space="preserve">Go </w:t></w:r><w:r><w:t>developer</w:t></w:r></w:p>`+
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>in table</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`+
		`<w:p/>`+
		`<w:p><w:r><w:t>Berlin</w:t></w:r></w:p>`)

	got, err := Text(context.Background(), data, "docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Alice Smith\nGo developer\n\nBerlin"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTextDocxNestedParagraphs(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>Alice Smith</w:t></w:r>`+
		`<w:r><w:pict><v:shape><v:textbox><w:txbxContent>`+
		`<w:p><w:r><w:t>box text</w:t></w:r></w:p>`+
		`</w:txbxContent></v:textbox></v:shape></w:pict></w:r>`+
		`<w:r><w:t xml:space="preserve"> Berlin</w:t></w:r></w:p>`+
		`<w:sdt><w:sdtContent><w:p><w:r><w:t>Go developer</w:t></w:r></w:p></w:sdtContent></w:sdt>`)

	got, err := Text(context.Background(), data, "docx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Alice Smith Berlin\nGo developer"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTextDocxNotZip(t *testing.T) {
	_, err := Text(context.Background(), []byte("plain bytes"), "docx")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestTextDocxMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("notes.txt")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	_, err = Text(context.Background(), buf.Bytes(), "docx")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestTextPDF(t *testing.T) {
	got, err := Text(context.Background(), buildPDF("Hello CV"), "pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Every BT text object starts a new line, including the first.
	if got != "\nHello CV" {
		t.Fatalf("expected %q, got %q", "\nHello CV", got)
	}
}

func TestTextPDFKeepsTextObjectOrder(t *testing.T) {
	got, err := Text(context.Background(), buildPDF("Alice Smith", "Go developer"), "pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "\nAlice Smith\nGo developer"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTextPDFGarbage(t *testing.T) {
	_, err := Text(context.Background(), []byte("%PDF-1.4 truncated"), "pdf")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestTextUnsupported(t *testing.T) {
	for _, ext := range []string{"exe", "doc", "", "pdfx"} {
		_, err := Text(context.Background(), []byte("x"), ext)
		if !errors.Is(err, ErrUnsupportedFileType) {
			t.Fatalf("ext %q: expected ErrUnsupportedFileType, got %v", ext, err)
		}
		var typed *UnsupportedFileTypeError
		if !errors.As(err, &typed) || typed.Ext != ext {
			t.Fatalf("ext %q: expected typed error carrying extension, got %v", ext, err)
		}
	}
}

func TestTextCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Text(ctx, []byte("x"), "txt"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSupported(t *testing.T) {
	if !Supported("PDF") || !Supported(".docx") || !Supported("txt") {
		t.Fatal("expected pdf, docx and txt to be supported")
	}
	if Supported("doc") {
		t.Fatal("doc must not be supported")
	}
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:v="urn:schemas-microsoft-com:vml"><w:body>` +
		body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// buildPDF writes a single-page PDF with one Helvetica text object per line and a correct xref table.
func buildPDF(lines ...string) []byte {
	objs := make([]string, len(lines))
	for i, line := range lines {
		objs[i] = fmt.Sprintf("BT /F1 12 Tf 72 %d Td (%s) Tj ET", 720-14*i, line)
	}
	content := strings.Join(objs, "\n")
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
