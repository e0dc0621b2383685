package source

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF yields no extractable text, typically a
// scanned document.
var ErrNoText = errors.New("no extractable text")

// ExtractPDFText returns the text of every page joined in page order, one
// visual row per line. Pages the row extractor cannot handle fall back to
// the plain text extractor.
func ExtractPDFText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read %s: pdf library panic: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		if t := pageText(page); t != "" {
			pages = append(pages, t)
		}
	}

	if len(pages) == 0 {
		plain, err := r.GetPlainText()
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		b, err := io.ReadAll(plain)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		if s := strings.TrimSpace(string(b)); s != "" {
			return s, nil
		}
		return "", fmt.Errorf("%s: %w", path, ErrNoText)
	}

	return strings.Join(pages, "\n"), nil
}

func pageText(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err == nil {
		var lines []string
		for _, row := range rows {
			parts := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				parts = append(parts, word.S)
			}
			if line := strings.TrimSpace(strings.Join(parts, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}

	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		f := page.Font(name)
		fonts[name] = &f
	}
	plain, err := page.GetPlainText(fonts)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(plain)
}
