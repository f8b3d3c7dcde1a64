package export

import (
	"bytes"
	"fmt"

	pdf "github.com/ledongthuc/pdf"
)

// Info summarizes a generated PDF.
type Info struct {
	Pages int
	Text  string
}

// Inspect parses data as a PDF and extracts what plain text it can. A print
// that does not parse or has no pages is rejected.
func Inspect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, fmt.Errorf("%w: empty output", ErrInvalidPDF)
	}
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	total := doc.NumPage()
	if total < 1 {
		return Info{}, fmt.Errorf("%w: no pages", ErrInvalidPDF)
	}
	var text bytes.Buffer
	for n := 1; n <= total; n++ {
		p := doc.Page(n)
		if p.V.IsNull() {
			continue
		}
		// Text is informational; pages with fonts the reader cannot decode are skipped.
		if content, err := p.GetPlainText(nil); err == nil {
			text.WriteString(content)
		}
	}
	return Info{Pages: total, Text: text.String()}, nil
}
