package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	ExtPDF  = "pdf"
	ExtDOCX = "docx"
	ExtTXT  = "txt"
)

// Text turns an uploaded document into plain text. ext is the lower-cased extension
// without the dot. Library used: github.com/ledongthuc/pdf (PDF).
func Text(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case ExtPDF:
		return extractPDF(data)
	case ExtDOCX:
		return extractDOCX(data)
	case ExtTXT:
		return extractTXT(data)
	default:
		return "", &UnsupportedFileTypeError{Ext: ext}
	}
}

// Supported reports whether Text accepts the extension.
func Supported(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case ExtPDF, ExtDOCX, ExtTXT:
		return true
	}
	return false
}

func extractTXT(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", decodeErr("txt", errors.New("invalid utf-8"))
	}
	return string(data), nil
}

func extractPDF(data []byte) (out string, err error) {
	// The pdf reader panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			out, err = "", decodeErr("pdf", errors.New("malformed document"))
		}
	}()
	if len(data) == 0 {
		return "", decodeErr("pdf", errors.New("empty data"))
	}
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", decodeErr("pdf", err)
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", decodeErr("pdf", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", decodeErr("pdf", err)
	}
	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	if len(data) == 0 {
		return "", decodeErr("docx", errors.New("empty data"))
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", decodeErr("docx", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", decodeErr("docx", errors.New("word/document.xml not found"))
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", decodeErr("docx", err)
	}
	defer rc.Close()

	paragraphs, err := bodyParagraphs(rc)
	if err != nil {
		return "", decodeErr("docx", err)
	}
	return strings.Join(paragraphs, "\n"), nil
}

// bodyParagraphs returns the text of each top-level w:p in document order. Paragraphs
// nested in tables, text boxes or other paragraphs are skipped; a content control
// (w:sdt) around a body paragraph does not count as nesting.
func bodyParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		out       []string
		current   strings.Builder
		paraDepth int
		skipDepth int
		inText    bool
	)
	collecting := func() bool { return paraDepth == 1 && skipDepth == 0 }
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl", "txbxContent":
				skipDepth++
			case "p":
				if skipDepth > 0 {
					break
				}
				paraDepth++
				if paraDepth == 1 {
					current.Reset()
				}
			case "t":
				inText = collecting()
			case "tab":
				if collecting() {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if collecting() {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "tbl", "txbxContent":
				if skipDepth > 0 {
					skipDepth--
				}
			case "p":
				if skipDepth > 0 || paraDepth == 0 {
					break
				}
				if paraDepth == 1 {
					out = append(out, current.String())
				}
				paraDepth--
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return out, nil
}
