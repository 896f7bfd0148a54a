package pdf

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// PageText is the outcome of extracting one page. A page whose extraction
// failed carries Err and contributes no text.
type PageText struct {
	Number int // 1-based
	Text   string
	Err    error
}

// OK reports whether the page was extracted without error.
func (p PageText) OK() bool {
	return p.Err == nil
}

// PageSource yields per-page text for a document.
type PageSource interface {
	NumPage() int
	PageText(n int) (string, error)
}

// ExtractPages pulls text from every page in order. A page that errors or
// panics is recorded as failed and extraction moves on to the next page.
func ExtractPages(src PageSource) []PageText {
	n := src.NumPage()
	pages := make([]PageText, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, extractPage(src, i))
	}
	return pages
}

func extractPage(src PageSource, n int) (page PageText) {
	page.Number = n
	defer func() {
		if r := recover(); r != nil {
			page.Text = ""
			page.Err = fmt.Errorf("page %d: %v", n, r)
		}
	}()
	text, err := src.PageText(n)
	if err != nil {
		return PageText{Number: n, Err: fmt.Errorf("page %d: %w", n, err)}
	}
	page.Text = text
	return page
}

// JoinPages joins the text of successful, non-empty pages with "\n" in page
// order and normalizes the result.
func JoinPages(pages []PageText) string {
	var parts []string
	for _, p := range pages {
		if p.OK() && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return NormalizeText(strings.Join(parts, "\n"))
}

// NormalizeText removes NUL characters and trailing whitespace on each
// line. Line count and order are preserved.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\x00", "")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.Join(lines, "\n")
}

// ledongthucPages adapts a ledongthuc reader to PageSource.
type ledongthucPages struct {
	r *pdf.Reader
}

func (s ledongthucPages) NumPage() int {
	return s.r.NumPage()
}

func (s ledongthucPages) PageText(n int) (string, error) {
	p := s.r.Page(n)
	if p.V.IsNull() {
		return "", nil
	}
	return p.GetPlainText(nil)
}

// TextExtractor produces the normalized full text of a PDF.
type TextExtractor struct {
	Logger *zap.Logger
}

// ExtractText opens path and returns the joined, normalized page text.
// Failing to open the file is an error; failing on individual pages is not.
func (t TextExtractor) ExtractText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to open PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages := ExtractPages(ledongthucPages{r: r})
	if t.Logger != nil {
		for _, p := range pages {
			if !p.OK() {
				t.Logger.Debug("page text extraction failed", zap.String("path", path), zap.Error(p.Err))
			}
		}
	}
	return JoinPages(pages), nil
}
