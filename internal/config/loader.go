package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPairs overrides feed.pairs with a comma separated list when set.
const EnvPairs = "PRICEFEED_PAIRS"

// Load reads a YAML config file, expands ${VAR} references and normalizes the
// pair list. Unknown keys are rejected so a misspelled section fails loudly
// instead of silently falling back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded, unset := expandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.UnsetEnv = unset

	if v := os.Getenv(EnvPairs); v != "" {
		cfg.Feed.Pairs = strings.Split(v, ",")
	}
	cfg.Feed.Pairs = normalizePairs(cfg.Feed.Pairs)

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns a config with every default applied and nothing loaded.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// expandEnv substitutes ${VAR} and $VAR from the environment, returning the
// sorted names that were referenced but not set.
func expandEnv(s string) (string, []string) {
	seen := make(map[string]bool)
	out := os.Expand(s, func(name string) string {
		v, ok := os.LookupEnv(name)
		if !ok {
			seen[name] = true
		}
		return v
	})

	unset := make([]string, 0, len(seen))
	for name := range seen {
		unset = append(unset, name)
	}
	sort.Strings(unset)
	return out, unset
}

// normalizePairs upper-cases instrument ids and drops blanks and duplicates,
// keeping first-seen order.
func normalizePairs(pairs []string) []string {
	if len(pairs) == 0 {
		return pairs
	}

	seen := make(map[string]bool, len(pairs))
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
