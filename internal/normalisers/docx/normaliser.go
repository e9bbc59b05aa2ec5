// Package docx extracts paragraph text from Word (.docx) documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/epicrisis/internal/core/domain"
	"github.com/custodia-labs/epicrisis/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const documentPart = "word/document.xml"

// maxPartSize bounds the decompressed document part.
const maxPartSize = 32 << 20

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Format returns "docx".
func (n *Normaliser) Format() string {
	return "docx"
}

// Extensions returns the extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".docx"}
}

// Normalise reads word/document.xml. Paragraphs and line breaks become
// newlines and table cells are separated by " | ".
func (n *Normaliser) Normalise(_ context.Context, raw []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("%w: not a docx archive: %v", domain.ErrInvalidInput, err)
	}

	for _, file := range reader.File {
		if file.Name != documentPart {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: opening %s: %v", domain.ErrInvalidInput, documentPart, err)
		}
		defer rc.Close()
		return parseDocument(io.LimitReader(rc, maxPartSize))
	}
	return "", fmt.Errorf("%w: %s missing", domain.ErrInvalidInput, documentPart)
}

// parseDocument walks the WordprocessingML tokens. Only element local
// names are matched, so the namespace prefix does not matter.
func parseDocument(r io.Reader) (string, error) {
	var b strings.Builder
	dec := xml.NewDecoder(r)
	inText := false
	cell := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: malformed %s: %v", domain.ErrInvalidInput, documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte(' ')
			case "br", "cr":
				b.WriteByte('\n')
			case "tr":
				cell = 0
			case "tc":
				if cell > 0 {
					b.WriteString(" | ")
				}
				cell++
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if cell == 0 {
					b.WriteByte('\n')
				} else {
					b.WriteByte(' ')
				}
			case "tr":
				cell = 0
				b.WriteByte('\n')
			}

		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return tidy(b.String()), nil
}

// tidy collapses runs of spaces and drops empty lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
