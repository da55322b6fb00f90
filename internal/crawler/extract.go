package crawler

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// record is the extracted payload of one page. Title is nil when no title
// line should be written.
type record struct {
	Title   *string
	Content string
}

// extractOptions selects the title policy and content capture mode.
type extractOptions struct {
	innerHTML     bool
	titleOptional bool
}

// extract pulls the title and content out of doc. The first match of each
// selector wins.
func extract(doc *goquery.Document, m matchers, opts extractOptions, pageURL string) (record, error) {
	var rec record
	if m.title != nil {
		sel := doc.FindMatcher(m.title).First()
		switch {
		case sel.Length() > 0:
			title := sel.Text()
			rec.Title = &title
		case !opts.titleOptional:
			return record{}, &ExtractionError{URL: pageURL, Reason: ErrNoTitle, Markup: documentMarkup(doc)}
		}
	}

	sel := doc.FindMatcher(m.content).First()
	if sel.Length() == 0 {
		return record{}, &ExtractionError{URL: pageURL, Reason: ErrNoContent, Markup: documentMarkup(doc)}
	}
	if !opts.innerHTML {
		rec.Content = sel.Text()
		return rec, nil
	}
	markup, err := goquery.OuterHtml(sel)
	if err != nil {
		return record{}, fmt.Errorf("render content markup for %s: %w", pageURL, err)
	}
	rec.Content = markup
	return rec, nil
}
