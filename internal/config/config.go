// Package config loads SubMint settings from flags, SUBMINT_* environment
// variables, a .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix         = "SUBMINT"
	defaultHomeDir    = ".submint"
	defaultConfigFile = "config.yaml"

	KeyHome   = "home"
	KeyConfig = "config"

	DefaultRPCURL  = "https://api.devnet.solana.com"
	redactedSecret = "********"
)

// Config holds every setting SubMint reads.
type Config struct {
	Home           string   `mapstructure:"home" yaml:"home"`
	ListenAddr     string   `mapstructure:"listen" yaml:"listen"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Development    bool     `mapstructure:"development" yaml:"development"`
	APISecretKey   string   `mapstructure:"api_secret_key" yaml:"api_secret_key"`
	PublicAPIKey   string   `mapstructure:"public_api_key" yaml:"public_api_key"`
	CachePath      string   `mapstructure:"cache_path" yaml:"cache_path"`

	Supabase  SupabaseConfig  `mapstructure:"supabase" yaml:"supabase"`
	Pinata    PinataConfig    `mapstructure:"pinata" yaml:"pinata"`
	Replicate ReplicateConfig `mapstructure:"replicate" yaml:"replicate"`
	Advisor   AdvisorConfig   `mapstructure:"advisor" yaml:"advisor"`
	Solana    SolanaConfig    `mapstructure:"solana" yaml:"solana"`
	Secrets   SecretsConfig   `mapstructure:"secrets" yaml:"secrets"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type SupabaseConfig struct {
	URL            string `mapstructure:"url" yaml:"url"`
	AnonKey        string `mapstructure:"anon_key" yaml:"anon_key"`
	ServiceRoleKey string `mapstructure:"service_role_key" yaml:"service_role_key"`
	JWTSecret      string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

type PinataConfig struct {
	JWT       string `mapstructure:"jwt" yaml:"jwt"`
	Gateway   string `mapstructure:"gateway" yaml:"gateway"`
	UploadURL string `mapstructure:"upload_url" yaml:"upload_url,omitempty"`
}

type ReplicateConfig struct {
	Token   string `mapstructure:"token" yaml:"token"`
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// AdvisorConfig picks the language model behind the health check. Provider
// is "openai", "gemini" or empty for whichever key is set.
type AdvisorConfig struct {
	Provider      string `mapstructure:"provider" yaml:"provider"`
	OpenAIKey     string `mapstructure:"openai_key" yaml:"openai_key"`
	OpenAIModel   string `mapstructure:"openai_model" yaml:"openai_model"`
	OpenAIBaseURL string `mapstructure:"openai_base_url" yaml:"openai_base_url,omitempty"`
	GeminiKey     string `mapstructure:"gemini_key" yaml:"gemini_key"`
	GeminiModel   string `mapstructure:"gemini_model" yaml:"gemini_model"`
}

type SolanaConfig struct {
	RPCURL string `mapstructure:"rpc_url" yaml:"rpc_url"`
}

// SecretsConfig controls the file fallback used when no OS keychain is
// available. An empty passphrase stores secrets unencrypted.
type SecretsConfig struct {
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase"`
}

// legacyEnv maps config keys to the variable names the hosted deployment
// already uses.
var legacyEnv = map[string][]string{
	"api_secret_key":            {"API_SECRET_KEY"},
	"public_api_key":            {"NEXT_PUBLIC_API_KEY"},
	"supabase.url":              {"NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_URL"},
	"supabase.anon_key":         {"NEXT_PUBLIC_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY"},
	"supabase.service_role_key": {"SUPABASE_SERVICE_ROLE_KEY"},
	"supabase.jwt_secret":       {"SUPABASE_JWT_SECRET"},
	"pinata.jwt":                {"PINATA_JWT"},
	"pinata.gateway":            {"NEXT_PUBLIC_GATEWAY_URL", "PINATA_GATEWAY"},
	"replicate.token":           {"REPLICATE_API_TOKEN"},
	"advisor.openai_key":        {"OPENAI_API_KEY"},
	"advisor.gemini_key":        {"GEMINI_API_KEY"},
	"solana.rpc_url":            {"SOLANA_RPC_URL"},
}

// flagKeys binds command-line flags to config keys.
var flagKeys = map[string]string{
	"listen":      "listen",
	"development": "development",
	"rpc-url":     "solana.rpc_url",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"log-file":    "log.output",
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("home", home)
	v.SetDefault("listen", ":8080")
	v.SetDefault("allowed_origins", []string{"https://submint.vercel.app", "http://localhost:3000"})
	v.SetDefault("development", false)
	v.SetDefault("cache_path", filepath.Join(home, "metadata.db"))
	v.SetDefault("replicate.model", "stability-ai/sdxl")
	v.SetDefault("advisor.openai_model", "gpt-4o")
	v.SetDefault("advisor.gemini_model", "gemini-2.0-flash")
	v.SetDefault("solana.rpc_url", DefaultRPCURL)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", formatConsole)
	v.SetDefault("log.output", "stderr")

	// Keys without a useful default still need registering so that
	// environment variables reach Unmarshal.
	for _, key := range []string{
		"api_secret_key", "public_api_key",
		"supabase.url", "supabase.anon_key", "supabase.service_role_key", "supabase.jwt_secret",
		"pinata.jwt", "pinata.gateway", "pinata.upload_url",
		"replicate.token", "replicate.base_url",
		"advisor.provider", "advisor.openai_key", "advisor.openai_base_url", "advisor.gemini_key",
		"secrets.passphrase",
	} {
		v.SetDefault(key, "")
	}
}

// Load reads the configuration. flags may be nil. Flags named "home" and
// "config" choose where the config file is looked up.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	home := flagOrEnv(flags, KeyHome)
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		home = filepath.Join(dir, defaultHomeDir)
	}
	cfgFile := flagOrEnv(flags, KeyConfig)
	if cfgFile == "" {
		cfgFile = defaultConfigFile
	}
	if !filepath.IsAbs(cfgFile) {
		cfgFile = filepath.Join(home, cfgFile)
	}

	v := viper.New()
	setDefaults(v, home)

	if _, err := os.Stat(cfgFile); err == nil {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", cfgFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var bindErr []error
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key, prefixed(key)}, names...)...); err != nil {
			bindErr = append(bindErr, fmt.Errorf("binding env to %q: %w", key, err))
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					bindErr = append(bindErr, fmt.Errorf("binding flag %q: %w", name, err))
				}
			}
		}
	}
	if err := errors.Join(bindErr...); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Home = home
	return &cfg, nil
}

func prefixed(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

func flagOrEnv(flags *pflag.FlagSet, name string) string {
	if flags != nil {
		if f := flags.Lookup(name); f != nil && f.Value.String() != "" {
			return f.Value.String()
		}
	}
	return os.Getenv(prefixed(name))
}

// Validate checks that the settings which are set are well formed.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Format) {
	case "", formatText, formatJSON, formatConsole:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	switch c.Advisor.Provider {
	case "", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("unknown advisor provider %q", c.Advisor.Provider))
	}
	for _, raw := range []string{c.Supabase.URL, c.Solana.RPCURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid URL %q", raw))
		}
	}
	for _, o := range c.AllowedOrigins {
		if u, err := url.Parse(o); err != nil || u.Scheme == "" {
			errs = append(errs, fmt.Errorf("invalid allowed origin %q", o))
		}
	}
	return errors.Join(errs...)
}

// Service names accepted by Require.
const (
	NeedSupabase  = "supabase"
	NeedPinata    = "pinata"
	NeedReplicate = "replicate"
	NeedAdvisor   = "advisor"
	NeedAPIKey    = "api-key"
)

// Require reports every missing setting for the named services at once.
func (c *Config) Require(services ...string) error {
	var errs []error
	missing := func(val, name string) {
		if strings.TrimSpace(val) == "" {
			errs = append(errs, fmt.Errorf("%s is not set", name))
		}
	}
	for _, s := range services {
		switch s {
		case NeedSupabase:
			missing(c.Supabase.URL, "supabase.url (SUPABASE_URL)")
			missing(c.Supabase.ServiceRoleKey, "supabase.service_role_key (SUPABASE_SERVICE_ROLE_KEY)")
		case NeedPinata:
			missing(c.Pinata.JWT, "pinata.jwt (PINATA_JWT)")
			missing(c.Pinata.Gateway, "pinata.gateway (PINATA_GATEWAY)")
		case NeedReplicate:
			missing(c.Replicate.Token, "replicate.token (REPLICATE_API_TOKEN)")
		case NeedAdvisor:
			if c.Advisor.OpenAIKey == "" && c.Advisor.GeminiKey == "" {
				errs = append(errs, errors.New("advisor.openai_key (OPENAI_API_KEY) or advisor.gemini_key (GEMINI_API_KEY) is not set"))
			}
		case NeedAPIKey:
			if len(c.APIKeys()) == 0 {
				errs = append(errs, errors.New("api_secret_key (API_SECRET_KEY) is not set"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown service %q", s))
		}
	}
	return errors.Join(errs...)
}

// APIKeys returns the keys accepted in x-api-key.
func (c *Config) APIKeys() []string {
	var keys []string
	for _, k := range []string{c.APISecretKey, c.PublicAPIKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// SecretsDir is where the file secret store lives.
func (c *Config) SecretsDir() string {
	return filepath.Join(c.Home, "secrets")
}

// Redacted returns a copy with every secret masked.
func (c Config) Redacted() Config {
	mask := func(s *string) {
		if *s != "" {
			*s = redactedSecret
		}
	}
	mask(&c.APISecretKey)
	mask(&c.PublicAPIKey)
	mask(&c.Supabase.ServiceRoleKey)
	mask(&c.Supabase.JWTSecret)
	mask(&c.Pinata.JWT)
	mask(&c.Replicate.Token)
	mask(&c.Advisor.OpenAIKey)
	mask(&c.Advisor.GeminiKey)
	mask(&c.Secrets.Passphrase)
	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Redacted())
}
