// Package testutil builds small, well-formed PDFs for tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// PDF describes a document for BuildPDF. Each entry in Pages becomes one
// page showing that string in Helvetica. Title and Author go into the Info
// dictionary; the dictionary is omitted when both are empty.
//
// RawInfo, when set, replaces that dictionary with a verbatim object body.
// InfoRef, when set, is written as the trailer's /Info value as-is, so it
// may point at an object that does not exist.
type PDF struct {
	Title  string
	Author string
	Pages  []string

	RawInfo string
	InfoRef string
}

// BuildPDF renders p as PDF 1.4 bytes with a correct xref table.
func BuildPDF(p PDF) []byte {
	var objects []string

	// 1: catalog, 2: page tree, 3: font, then (page, content) per page, then info.
	kids := make([]string, len(p.Pages))
	for i := range p.Pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>", strings.Join(kids, " "), len(p.Pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range p.Pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", escape(text))
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	infoRef := ""
	switch {
	case p.RawInfo != "":
		objects = append(objects, p.RawInfo)
		infoRef = fmt.Sprintf(" /Info %d 0 R", len(objects))
	case p.Title != "" || p.Author != "":
		var info []string
		if p.Title != "" {
			info = append(info, fmt.Sprintf("/Title (%s)", escape(p.Title)))
		}
		if p.Author != "" {
			info = append(info, fmt.Sprintf("/Author (%s)", escape(p.Author)))
		}
		objects = append(objects, "<< "+strings.Join(info, " ")+" >>")
		infoRef = fmt.Sprintf(" /Info %d 0 R", len(objects))
	}
	if p.InfoRef != "" {
		infoRef = " /Info " + p.InfoRef
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

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
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, infoRef, xref)
	return buf.Bytes()
}

// WritePDF writes BuildPDF(p) to a file in a test temp dir and returns its path.
func WritePDF(t testing.TB, p PDF) string {
	t.Helper()
	return WriteFile(t, "doc.pdf", BuildPDF(p))
}

// WriteFile writes data to name inside a fresh temp dir.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
