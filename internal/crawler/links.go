package crawler

import (
	"slices"

	"github.com/PuerkitoBio/goquery"
)

// transition is the outcome of link resolution for one traversal step.
type transition int

const (
	// transitionSubPage keeps the cursor in place while sub pages remain.
	transitionSubPage transition = iota
	// transitionRewrite replaced the current list slot with a next link.
	transitionRewrite
	// transitionAdvance moved the cursor to the following list entry.
	transitionAdvance
	// transitionDone moved the cursor past the end of the list.
	transitionDone
)

func (t transition) String() string {
	switch t {
	case transitionSubPage:
		return "sub_page"
	case transitionRewrite:
		return "rewrite"
	case transitionAdvance:
		return "advance"
	case transitionDone:
		return "done"
	default:
		return "unknown"
	}
}

// traversal is the mutable position of a run: the crawl list, the cursor into
// it, and the sub-page stack. The top of the stack is its last element.
type traversal struct {
	list   []string
	cursor int
	stack  []string
}

// target returns the list entry or sub-page href to fetch next.
func (tr *traversal) target() (string, error) {
	if n := len(tr.stack); n > 0 {
		return tr.stack[n-1], nil
	}
	if tr.cursor < 0 || tr.cursor >= len(tr.list) {
		return "", ErrIndexOutOfRange
	}
	return tr.list[tr.cursor], nil
}

// finished reports whether the cursor has run off the end of the list.
func (tr *traversal) finished() bool {
	return len(tr.stack) == 0 && tr.cursor >= len(tr.list)
}

// resolve computes the next state from the page that was just fetched.
// Rewriting the current slot and advancing the cursor never happen together.
func (tr *traversal) resolve(doc *goquery.Document, m matchers) (transition, string) {
	if len(tr.stack) == 0 {
		if m.sub != nil {
			tr.stack = discoverSubPages(doc, m)
		}
	} else {
		tr.stack = tr.stack[:len(tr.stack)-1]
	}
	if len(tr.stack) > 0 {
		return transitionSubPage, tr.stack[len(tr.stack)-1]
	}

	if href, ok := nextLink(doc, m); ok {
		tr.list[tr.cursor] = href
		return transitionRewrite, href
	}

	tr.cursor++
	if tr.cursor >= len(tr.list) {
		return transitionDone, ""
	}
	return transitionAdvance, tr.list[tr.cursor]
}

// discoverSubPages collects the href of every sub-selector match that passes
// the sub pattern, reversed so that popping yields document order.
func discoverSubPages(doc *goquery.Document, m matchers) []string {
	var hrefs []string
	doc.FindMatcher(m.sub).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if m.subAllow != nil && !m.subAllow.MatchString(href) {
			return
		}
		hrefs = append(hrefs, href)
	})
	slices.Reverse(hrefs)
	return hrefs
}

// nextLink returns the href of the first next-selector match when it is
// accepted. The deny pattern takes precedence over the allow pattern.
func nextLink(doc *goquery.Document, m matchers) (string, bool) {
	if m.next == nil {
		return "", false
	}
	href, ok := doc.FindMatcher(m.next).First().Attr("href")
	if !ok {
		return "", false
	}
	if m.nextDeny != nil && m.nextDeny.MatchString(href) {
		return "", false
	}
	if m.nextAllow != nil && !m.nextAllow.MatchString(href) {
		return "", false
	}
	return href, true
}
