package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Mohsinsiddi/alchscan/internal/logging"
	"github.com/Mohsinsiddi/alchscan/internal/providers"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// keys lists every configuration key; flags are bound by the same name with
// dashes instead of underscores.
var keys = []string{
	"api_key", "address", "network", "base_url", "concurrency", "max_records",
	"page_size", "output", "direction", "categories", "split_categories",
	"with_metadata", "strict", "max_pages", "timeout", "cache",
	"metrics_file", "log_level", "log_format",
}

// DefaultDir returns ~/.alchscan.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home dir: %w", err)
	}
	return filepath.Join(home, ".alchscan"), nil
}

// Load resolves configuration from defaults, dir/config.yaml, ALCHSCAN_*
// environment variables and flags, in increasing priority. dir defaults to
// ~/.alchscan; flags may be nil.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	v := newViper(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if flags != nil {
		for _, key := range keys {
			if f := flags.Lookup(flagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", f.Name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.configDir = dir
	cfg.configFile = v.ConfigFileUsed()
	cfg.normalise()
	return cfg, nil
}

// WriteDefault creates dir/config.yaml populated with defaults. It refuses
// to overwrite an existing file. Environment values are never written out.
func WriteDefault(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("could not create config dir: %w", err)
	}
	path := filepath.Join(dir, configName+"."+configType)
	v := newViper(dir)
	if err := v.SafeWriteConfigAs(path); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Dir returns the directory the config file is looked up in.
func (c *Config) Dir() string { return c.configDir }

// File returns the config file that was read, or "" when none existed.
func (c *Config) File() string { return c.configFile }

// Validate checks every field and normalises the address to EIP-55 form.
// The API key is not checked here since it may come from the keychain.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalid)
	}
	if !common.IsHexAddress(c.Address) {
		return fmt.Errorf("%w: address %q is not a 20-byte hex address", ErrInvalid, c.Address)
	}
	c.Address = common.HexToAddress(c.Address).Hex()

	if c.BaseURL == "" && !providers.SupportsNetwork(c.Network) {
		return fmt.Errorf("%w: network %q is not supported (want one of %s)",
			ErrInvalid, c.Network, strings.Join(providers.Networks(), ", "))
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrInvalid, c.Concurrency)
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("%w: max_records must be >= 0, got %d", ErrInvalid, c.MaxRecords)
	}
	if c.PageSize < 1 || c.PageSize > providers.MaxPageSize {
		return fmt.Errorf("%w: page_size must be between 1 and %d, got %d", ErrInvalid, providers.MaxPageSize, c.PageSize)
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("%w: max_pages must be >= 0, got %d", ErrInvalid, c.MaxPages)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0, got %s", ErrInvalid, c.Timeout)
	}
	if !slices.Contains([]string{DirectionFrom, DirectionTo, DirectionBoth}, c.Direction) {
		return fmt.Errorf("%w: direction must be from, to or both, got %q", ErrInvalid, c.Direction)
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("%w: at least one category is required", ErrInvalid)
	}
	for _, cat := range c.Categories {
		if !providers.ValidCategory(cat) {
			return fmt.Errorf("%w: unknown category %q", ErrInvalid, cat)
		}
	}
	if c.Output == "" {
		return fmt.Errorf("%w: output path is required", ErrInvalid)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// Streams expands the configuration into independent cursor chains.
func (c *Config) Streams() []providers.Query {
	var dirs []providers.Direction
	switch c.Direction {
	case DirectionTo:
		dirs = []providers.Direction{providers.DirectionTo}
	case DirectionBoth:
		dirs = []providers.Direction{providers.DirectionFrom, providers.DirectionTo}
	default:
		dirs = []providers.Direction{providers.DirectionFrom}
	}

	var groups [][]string
	if c.SplitCategories {
		for _, cat := range c.Categories {
			groups = append(groups, []string{cat})
		}
	} else {
		groups = [][]string{c.Categories}
	}

	var out []providers.Query
	for _, d := range dirs {
		for _, g := range groups {
			out = append(out, providers.Query{Address: c.Address, Direction: d, Categories: g})
		}
	}
	return out
}

// --- helpers ---

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)

	v.SetDefault("api_key", "")
	v.SetDefault("address", "")
	v.SetDefault("network", defaultNetwork)
	v.SetDefault("base_url", "")
	v.SetDefault("concurrency", defaultConcurrency)
	v.SetDefault("max_records", defaultMaxRecords)
	v.SetDefault("page_size", defaultPageSize)
	v.SetDefault("output", defaultOutput)
	v.SetDefault("direction", defaultDirection)
	v.SetDefault("categories", slices.Clone(providers.DefaultCategories))
	v.SetDefault("split_categories", false)
	v.SetDefault("with_metadata", false)
	v.SetDefault("strict", false)
	v.SetDefault("max_pages", 0)
	v.SetDefault("timeout", defaultTimeout.String())
	v.SetDefault("cache", "")
	v.SetDefault("metrics_file", "")
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_format", defaultLogFormat)
	return v
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func (c *Config) normalise() {
	c.Network = strings.ToLower(strings.TrimSpace(c.Network))
	c.Direction = strings.ToLower(strings.TrimSpace(c.Direction))
	c.Address = strings.TrimSpace(c.Address)
	c.LogFormat = strings.ToLower(c.LogFormat)
	for i, cat := range c.Categories {
		c.Categories[i] = strings.ToLower(strings.TrimSpace(cat))
	}
}
