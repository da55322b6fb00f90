package crawler

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

var replacementChar = []byte("\uFFFD")

// newDocument parses a decoded page body. Malformed UTF-8 left over from the
// decode step is replaced rather than rejected.
func newDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(bytes.ToValidUTF8(body, replacementChar)))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// documentMarkup renders the whole document for diagnostics. Rendering errors
// are folded into the returned text.
func documentMarkup(doc *goquery.Document) string {
	markup, err := doc.Html()
	if err != nil {
		return fmt.Sprintf("<unrenderable document: %v>", err)
	}
	return markup
}
