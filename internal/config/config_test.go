package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyHome, "", "")
	fs.String(KeyConfig, "", "")
	fs.String("listen", ":8080", "")
	fs.String("log-level", "", "")
	fs.String("rpc-url", "", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	cfg, err := Load(testFlags(t, "--home", home))
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, []string{"https://submint.vercel.app", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, DefaultRPCURL, cfg.Solana.RPCURL)
	assert.Equal(t, filepath.Join(home, "metadata.db"), cfg.CachePath)
	assert.Equal(t, "gpt-4o", cfg.Advisor.OpenAIModel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadLayers(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(`
listen: ":9000"
allowed_origins: ["https://app.example"]
pinata:
  gateway: gw.example
log:
  level: debug
`), 0o600))

	t.Setenv("SUBMINT_PINATA_JWT", "pinata-jwt")
	t.Setenv("API_SECRET_KEY", "s3cret")
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "https://ref.supabase.co")
	t.Setenv("SUBMINT_SUPABASE_SERVICE_ROLE_KEY", "service")

	cfg, err := Load(testFlags(t, "--home", home, "--log-level", "warn"))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr, "config file overrides default")
	assert.Equal(t, []string{"https://app.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "gw.example", cfg.Pinata.Gateway)
	assert.Equal(t, "pinata-jwt", cfg.Pinata.JWT, "prefixed env")
	assert.Equal(t, "https://ref.supabase.co", cfg.Supabase.URL, "legacy env")
	assert.Equal(t, "service", cfg.Supabase.ServiceRoleKey)
	assert.Equal(t, []string{"s3cret"}, cfg.APIKeys())
	assert.Equal(t, "warn", cfg.Log.Level, "flag overrides file")

	assert.NoError(t, cfg.Require(NeedSupabase, NeedPinata, NeedAPIKey))
}

func TestRequireReportsEverything(t *testing.T) {
	cfg := &Config{}
	err := cfg.Require(NeedSupabase, NeedPinata, NeedReplicate, NeedAdvisor, NeedAPIKey)
	require.Error(t, err)
	for _, want := range []string{"supabase.url", "service_role_key", "pinata.jwt", "pinata.gateway", "REPLICATE_API_TOKEN", "OPENAI_API_KEY", "API_SECRET_KEY"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg.Advisor.GeminiKey = "g"
	assert.NoError(t, cfg.Require(NeedAdvisor))
	assert.Error(t, cfg.Require("nope"))
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		AllowedOrigins: []string{"not an origin"},
		Advisor:        AdvisorConfig{Provider: "claude"},
		Solana:         SolanaConfig{RPCURL: "devnet"},
		Log:            LogConfig{Format: "xml"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown log format "xml"`)
	assert.Contains(t, err.Error(), `unknown advisor provider "claude"`)
	assert.Contains(t, err.Error(), `invalid URL "devnet"`)
	assert.Contains(t, err.Error(), `invalid allowed origin "not an origin"`)
}

func TestYAMLRedactsSecrets(t *testing.T) {
	cfg := &Config{
		ListenAddr:   ":8080",
		APISecretKey: "s3cret",
		Pinata:       PinataConfig{JWT: "pinata-jwt", Gateway: "gw.example"},
		Advisor:      AdvisorConfig{OpenAIKey: "sk-live"},
	}
	out, err := cfg.YAML()
	require.NoError(t, err)

	text := string(out)
	assert.NotContains(t, text, "s3cret")
	assert.NotContains(t, text, "pinata-jwt")
	assert.NotContains(t, text, "sk-live")
	assert.Contains(t, text, "gw.example")
	assert.Contains(t, text, redactedSecret)
	assert.Equal(t, "s3cret", cfg.APISecretKey, "original is untouched")
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		cfg  LogConfig
		want slog.Level
	}{
		{LogConfig{Level: "debug"}, slog.LevelDebug},
		{LogConfig{Level: "WARNING"}, slog.LevelWarn},
		{LogConfig{Level: "trace"}, LevelTrace},
		{LogConfig{Level: "none"}, levelNone},
		{LogConfig{Level: "error"}, slog.LevelError},
		{LogConfig{Level: "bogus"}, slog.LevelInfo},
		{LogConfig{Level: "debug", Output: "discard"}, levelNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.cfg.LogLevel(), "level %q output %q", tt.cfg.Level, tt.cfg.Output)
	}
}

func TestHandlerFormats(t *testing.T) {
	var buf bytes.Buffer
	h, err := LogConfig{Format: "json", Level: "info"}.handler(&buf)
	require.NoError(t, err)
	slog.New(h).Info("minted", "mint", "abc")
	assert.Contains(t, buf.String(), `"mint":"abc"`)

	buf.Reset()
	h, err = LogConfig{Level: "info"}.handler(&buf)
	require.NoError(t, err)
	slog.New(h).Info("minted")
	assert.Contains(t, buf.String(), "minted")
	assert.False(t, strings.Contains(buf.String(), "\x1b["), "no colour when not a terminal")

	_, err = LogConfig{Format: "xml"}.handler(&buf)
	require.Error(t, err)
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "submint.log")
	log, err := NewLogger(LogConfig{Format: "text", Output: path})
	require.NoError(t, err)
	log.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}
