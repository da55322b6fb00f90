package crawler

import (
	"fmt"
	"strings"
	"time"
)

// DefaultAgent is sent when the configuration leaves the user agent empty.
const DefaultAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:90.0) Gecko/20100101 Firefox/90.0"

// DefaultEncoding is used when the configuration leaves the encoding empty.
const DefaultEncoding = "utf-8"

// Config captures every knob that influences a single crawl task. It is
// decoupled from Viper so tasks can be built directly in tests.
type Config struct {
	// Base is prepended to every list entry and every discovered href.
	Base string
	// URLList is the ordered crawl list. Entries are rewritten in place when a
	// next link is followed.
	URLList []string

	Title              string
	Content            string
	Next               string
	NextRegexp         string
	NextRegexpNotMatch string
	Sub                string
	SubRegexp          string

	Encoding string
	Agent    string
	Proxy    string

	SleepMillis        uint64
	RandomSleepMillis  uint64
	RateLimitPerSecond float64

	// IsExpiredNext suppresses extraction for the very first fetch of a run.
	IsExpiredNext bool
	// IsInnerHTML captures the matched node's markup instead of its text.
	IsInnerHTML bool
	// TitleOptional skips the title line when the title selector has no match.
	TitleOptional bool

	URLListIndex int

	HTTP HTTPConfig
}

// HTTPConfig tunes the page fetcher.
type HTTPConfig struct {
	Timeout      time.Duration
	MaxBodyBytes int
	StrictStatus bool
}

// withDefaults fills in the encoding and agent defaults.
func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Encoding) == "" {
		c.Encoding = DefaultEncoding
	}
	if strings.TrimSpace(c.Agent) == "" {
		c.Agent = DefaultAgent
	}
	c.URLList = append([]string(nil), c.URLList...)
	return c
}

// Validate checks the invariants that must hold before a task is built.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return &ConfigError{Key: "content", Err: errContentRequired}
	}
	if c.URLListIndex < 0 || c.URLListIndex > len(c.URLList) {
		return &ConfigError{
			Key: "url_list_index",
			Err: fmt.Errorf("%d out of range for url_list of length %d", c.URLListIndex, len(c.URLList)),
		}
	}
	if c.RateLimitPerSecond < 0 {
		return &ConfigError{Key: "rate_limit_per_second", Err: fmt.Errorf("must be >= 0, got %v", c.RateLimitPerSecond)}
	}
	if c.HTTP.Timeout < 0 {
		return &ConfigError{Key: "http.timeout", Err: fmt.Errorf("must be >= 0, got %s", c.HTTP.Timeout)}
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return &ConfigError{Key: "http.max_body_bytes", Err: fmt.Errorf("must be >= 0, got %d", c.HTTP.MaxBodyBytes)}
	}
	return nil
}

// Check validates cfg and compiles every selector and pattern without
// building a task or touching the network.
func Check(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err := compileMatchers(cfg)
	return err
}
