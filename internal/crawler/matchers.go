package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/text/encoding/htmlindex"
)

// matchers holds the compiled form of the configured selectors and patterns.
// A nil field means the feature is disabled; it never means "match all".
type matchers struct {
	title   cascadia.Selector
	content cascadia.Selector
	next    cascadia.Selector
	sub     cascadia.Selector

	nextAllow *regexp.Regexp
	nextDeny  *regexp.Regexp
	subAllow  *regexp.Regexp

	// encoding is the canonical WHATWG name of the configured encoding.
	encoding string
}

func compileMatchers(cfg Config) (matchers, error) {
	var (
		m   matchers
		err error
	)
	if m.title, err = compileSelector("title", cfg.Title); err != nil {
		return matchers{}, err
	}
	if m.content, err = compileSelector("content", cfg.Content); err != nil {
		return matchers{}, err
	}
	if m.content == nil {
		return matchers{}, &ConfigError{Key: "content", Err: errContentRequired}
	}
	if m.next, err = compileSelector("next", cfg.Next); err != nil {
		return matchers{}, err
	}
	if m.sub, err = compileSelector("sub", cfg.Sub); err != nil {
		return matchers{}, err
	}
	if m.nextAllow, err = compilePattern("next_regexp", cfg.NextRegexp); err != nil {
		return matchers{}, err
	}
	if m.nextDeny, err = compilePattern("next_regexp_not_match", cfg.NextRegexpNotMatch); err != nil {
		return matchers{}, err
	}
	if m.subAllow, err = compilePattern("sub_regexp", cfg.SubRegexp); err != nil {
		return matchers{}, err
	}
	if m.encoding, err = resolveEncoding(cfg.Encoding); err != nil {
		return matchers{}, err
	}
	if err := checkProxy(cfg.Proxy); err != nil {
		return matchers{}, err
	}
	return m, nil
}

func compileSelector(key, raw string) (cascadia.Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	sel, err := cascadia.Compile(raw)
	if err != nil {
		return nil, &ConfigError{Key: key, Err: fmt.Errorf("compile selector %q: %w", raw, err)}
	}
	return sel, nil
}

func compilePattern(key, raw string) (*regexp.Regexp, error) {
	if raw == "" {
		return nil, nil
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return nil, &ConfigError{Key: key, Err: fmt.Errorf("compile pattern: %w", err)}
	}
	return re, nil
}

func resolveEncoding(label string) (string, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", &ConfigError{Key: "encoding", Err: fmt.Errorf("unknown encoding %q: %w", label, err)}
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return "", &ConfigError{Key: "encoding", Err: fmt.Errorf("unnamed encoding %q: %w", label, err)}
	}
	return name, nil
}

func checkProxy(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigError{Key: "proxy", Err: fmt.Errorf("parse proxy url: %w", err)}
	}
	if u.Scheme == "" || u.Host == "" {
		return &ConfigError{Key: "proxy", Err: fmt.Errorf("proxy url %q needs a scheme and host", raw)}
	}
	return nil
}
