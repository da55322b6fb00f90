// Package config loads and validates crawl configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

// EnvPrefix namespaces environment overrides, e.g. PAGECRAWL_HTTP_TIMEOUT=5s.
const EnvPrefix = "PAGECRAWL"

// Config captures everything read from the TOML file. Crawl keys live at the
// top level; ambient settings live in sections.
type Config struct {
	Base               string   `mapstructure:"base"`
	URLList            []string `mapstructure:"url_list"`
	Title              string   `mapstructure:"title"`
	Content            string   `mapstructure:"content"`
	Next               string   `mapstructure:"next"`
	NextRegexp         string   `mapstructure:"next_regexp"`
	NextRegexpNotMatch string   `mapstructure:"next_regexp_not_match"`
	Sub                string   `mapstructure:"sub"`
	SubRegexp          string   `mapstructure:"sub_regexp"`
	Encoding           string   `mapstructure:"encoding"`
	Agent              string   `mapstructure:"agent"`
	Proxy              string   `mapstructure:"proxy"`
	SleepMillis        uint64   `mapstructure:"sleep_millis"`
	RandomSleepMillis  uint64   `mapstructure:"random_sleep_millis"`
	RateLimitPerSecond float64  `mapstructure:"rate_limit_per_second"`
	IsExpiredNext      bool     `mapstructure:"is_expired_next"`
	IsInnerHTML        bool     `mapstructure:"is_inner_html"`
	TitleOptional      bool     `mapstructure:"title_optional"`
	URLListIndex       int      `mapstructure:"url_list_index"`
	Output             string   `mapstructure:"output"`

	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// HTTPConfig tunes the page fetcher.
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
	StrictStatus bool          `mapstructure:"strict_status"`
}

// LogConfig toggles zap development features and the minimum level.
type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the Prometheus textfile written at exit.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ProgressConfig controls the terminal progress bar.
type ProgressConfig struct {
	Bar bool `mapstructure:"bar"`
}

// Load builds a Config from a TOML file and the environment. An empty path
// reads the environment and defaults only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base", "")
	v.SetDefault("url_list", []string{})
	v.SetDefault("title", "")
	v.SetDefault("content", "")
	v.SetDefault("next", "")
	v.SetDefault("next_regexp", "")
	v.SetDefault("next_regexp_not_match", "")
	v.SetDefault("sub", "")
	v.SetDefault("sub_regexp", "")
	v.SetDefault("encoding", crawler.DefaultEncoding)
	v.SetDefault("agent", crawler.DefaultAgent)
	v.SetDefault("proxy", "")
	v.SetDefault("sleep_millis", 0)
	v.SetDefault("random_sleep_millis", 0)
	v.SetDefault("rate_limit_per_second", 0)
	v.SetDefault("is_expired_next", false)
	v.SetDefault("is_inner_html", false)
	v.SetDefault("title_optional", false)
	v.SetDefault("url_list_index", 0)
	v.SetDefault("output", "")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.max_body_bytes", 0)
	v.SetDefault("http.strict_status", false)
	v.SetDefault("log.development", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("progress.bar", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.Crawler().Validate(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Crawler converts the file layout into the task configuration.
func (c Config) Crawler() crawler.Config {
	return crawler.Config{
		Base:               c.Base,
		URLList:            append([]string(nil), c.URLList...),
		Title:              c.Title,
		Content:            c.Content,
		Next:               c.Next,
		NextRegexp:         c.NextRegexp,
		NextRegexpNotMatch: c.NextRegexpNotMatch,
		Sub:                c.Sub,
		SubRegexp:          c.SubRegexp,
		Encoding:           c.Encoding,
		Agent:              c.Agent,
		Proxy:              c.Proxy,
		SleepMillis:        c.SleepMillis,
		RandomSleepMillis:  c.RandomSleepMillis,
		RateLimitPerSecond: c.RateLimitPerSecond,
		IsExpiredNext:      c.IsExpiredNext,
		IsInnerHTML:        c.IsInnerHTML,
		TitleOptional:      c.TitleOptional,
		URLListIndex:       c.URLListIndex,
		HTTP: crawler.HTTPConfig{
			Timeout:      c.HTTP.Timeout,
			MaxBodyBytes: c.HTTP.MaxBodyBytes,
			StrictStatus: c.HTTP.StrictStatus,
		},
	}
}

// ParseLevel maps a level name to a zap level; empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	if strings.TrimSpace(name) == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel, &crawler.ConfigError{Key: "log.level", Err: err}
	}
	return lvl, nil
}
