package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
base = "https://novel.example"
url_list = ["/book/1", "/book/2"]
title = "h1"
content = "#content"
next = "a.next"
next_regexp = '^/book/\d+_\d+$'
next_regexp_not_match = "expired"
sub = "ul.chapters a"
sub_regexp = "^/book/"
encoding = "gbk"
is_expired_next = true
agent = "test-agent"
random_sleep_millis = 250
sleep_millis = 1000
is_inner_html = true
url_list_index = 1
proxy = "http://127.0.0.1:8118"
output = "out.txt"
title_optional = true
rate_limit_per_second = 2.5

[http]
timeout = "5s"
max_body_bytes = 1048576
strict_status = true

[log]
development = false
level = "debug"

[metrics]
textfile = "/tmp/pagecrawl.prom"

[progress]
bar = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://novel.example", cfg.Base)
	assert.Equal(t, []string{"/book/1", "/book/2"}, cfg.URLList)
	assert.Equal(t, `^/book/\d+_\d+$`, cfg.NextRegexp)
	assert.Equal(t, "expired", cfg.NextRegexpNotMatch)
	assert.Equal(t, "gbk", cfg.Encoding)
	assert.True(t, cfg.IsExpiredNext)
	assert.True(t, cfg.IsInnerHTML)
	assert.True(t, cfg.TitleOptional)
	assert.Equal(t, uint64(250), cfg.RandomSleepMillis)
	assert.Equal(t, uint64(1000), cfg.SleepMillis)
	assert.Equal(t, 1, cfg.URLListIndex)
	assert.Equal(t, "out.txt", cfg.Output)
	assert.InDelta(t, 2.5, cfg.RateLimitPerSecond, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 1048576, cfg.HTTP.MaxBodyBytes)
	assert.True(t, cfg.HTTP.StrictStatus)
	assert.False(t, cfg.Log.Development)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/pagecrawl.prom", cfg.Metrics.Textfile)
	assert.False(t, cfg.Progress.Bar)

	cc := cfg.Crawler()
	assert.Equal(t, "http://127.0.0.1:8118", cc.Proxy)
	assert.Equal(t, "test-agent", cc.Agent)
	assert.Equal(t, 5*time.Second, cc.HTTP.Timeout)
	assert.True(t, cc.HTTP.StrictStatus)
	assert.Equal(t, cfg.URLList, cc.URLList)
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `
url_list = ["/a"]
content = "#content"
`))
	require.NoError(t, err)

	assert.Equal(t, crawler.DefaultEncoding, cfg.Encoding)
	assert.Equal(t, crawler.DefaultAgent, cfg.Agent)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Progress.Bar)
	assert.Zero(t, cfg.URLListIndex)
	assert.False(t, cfg.IsExpiredNext)
}

func TestLoadRequiresContent(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `url_list = ["/a"]`))
	var cfgErr *crawler.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "content", cfgErr.Key)
	assert.Contains(t, err.Error(), "content is expected")
}

func TestLoadRejectsIndexPastEnd(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `
url_list = ["/a"]
content = "p"
url_list_index = 2
`))
	var cfgErr *crawler.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "url_list_index", cfgErr.Key)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `
content = "p"
[log]
level = "chatty"
`))
	var cfgErr *crawler.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "log.level", cfgErr.Key)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestLoadMalformedTOML(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, `content = "p`))
	require.Error(t, err)
	var cfgErr *crawler.ConfigError
	assert.False(t, errors.As(err, &cfgErr))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PAGECRAWL_SLEEP_MILLIS", "750")
	t.Setenv("PAGECRAWL_HTTP_TIMEOUT", "2s")
	t.Setenv("PAGECRAWL_LOG_LEVEL", "warn")
	t.Setenv("PAGECRAWL_OUTPUT", "env.txt")

	cfg, err := Load(writeConfig(t, `
content = "p"
sleep_millis = 10
output = "file.txt"
`))
	require.NoError(t, err)
	assert.Equal(t, uint64(750), cfg.SleepMillis)
	assert.Equal(t, 2*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "env.txt", cfg.Output)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)

	lvl, err = ParseLevel("error")
	require.NoError(t, err)
	assert.Equal(t, zapcore.ErrorLevel, lvl)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}
