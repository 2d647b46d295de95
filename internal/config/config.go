// Package config loads and validates the requirement file: the YAML document
// naming the pages to watch, their required patterns, and the daemon
// settings. Validation happens once here; nothing deeper in the process
// re-checks these values.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/pagewatch/pagewatch/internal/probe"
)

const (
	DefaultProbeInterval = 5 * 60 // seconds
	DefaultPort          = 80
)

// Overrides carries command-line values that take precedence over the
// requirement file. Nil fields mean "not set on the command line".
type Overrides struct {
	ProbeInterval *int
	Port          *int
	LogDir        string
}

// Config is the validated runtime configuration.
type Config struct {
	Pages         []probe.PageSpec
	ProbeInterval time.Duration
	Port          int
	SlackWebhook  string
	LogDir        string

	// Warnings are non-fatal findings (e.g. a page with no patterns) for the
	// caller to log at startup.
	Warnings []string
}

// fileSchema mirrors the requirement file layout.
type fileSchema struct {
	Pages         []pageSchema `yaml:"pages"`
	ProbeInterval *int         `yaml:"probe-interval"`
	Port          *int         `yaml:"port"`
	SlackWebhook  string       `yaml:"slack-webhook"`
}

type pageSchema struct {
	URL      string    `yaml:"url"`
	Patterns *[]string `yaml:"patterns"`
}

// Load reads the requirement file at path, applies command-line overrides
// and validates everything. All validation failures are aggregated so the
// operator sees the full list in one run instead of fixing them one by one.
func Load(path string, overrides Overrides) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read requirement file: %w", err)
	}
	return Parse(raw, overrides)
}

// Parse validates an already-read requirement file.
func Parse(raw []byte, overrides Overrides) (*Config, error) {
	var file fileSchema
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("config: malformed requirement file: %w", err)
	}

	cfg := &Config{
		ProbeInterval: DefaultProbeInterval * time.Second,
		Port:          DefaultPort,
		SlackWebhook:  file.SlackWebhook,
		LogDir:        overrides.LogDir,
	}

	var errs error

	if len(file.Pages) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("no page configurations specified"))
	}
	for i, page := range file.Pages {
		spec, warning, err := validatePage(page)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("pages[%d]: %w", i, err))
			continue
		}
		if warning != "" {
			cfg.Warnings = append(cfg.Warnings, warning)
		}
		cfg.Pages = append(cfg.Pages, spec)
	}

	interval := pick(overrides.ProbeInterval, file.ProbeInterval, DefaultProbeInterval)
	if interval < 0 {
		errs = multierr.Append(errs, fmt.Errorf("'probe-interval' must be non-negative (got %d)", interval))
	} else {
		cfg.ProbeInterval = time.Duration(interval) * time.Second
	}

	port := pick(overrides.Port, file.Port, DefaultPort)
	if port <= 0 || port >= 65535 {
		errs = multierr.Append(errs, fmt.Errorf("'port' must be in range 0..65535 exclusive (got %d)", port))
	} else {
		cfg.Port = port
	}

	if errs != nil {
		return nil, fmt.Errorf("config: %w", errs)
	}
	return cfg, nil
}

func validatePage(page pageSchema) (probe.PageSpec, string, error) {
	if page.URL == "" {
		return probe.PageSpec{}, "", fmt.Errorf("missing 'url' key")
	}
	if page.Patterns == nil {
		return probe.PageSpec{}, "", fmt.Errorf("missing 'patterns' key for url %s", page.URL)
	}

	u, err := url.Parse(page.URL)
	if err != nil {
		return probe.PageSpec{}, "", fmt.Errorf("invalid url %q: %w", page.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return probe.PageSpec{}, "", fmt.Errorf("unsupported protocol %q in url %s", u.Scheme, page.URL)
	}
	if u.User != nil {
		return probe.PageSpec{}, "", fmt.Errorf("url %s contains credentials; HTTP authentication is not supported", page.URL)
	}

	for _, pattern := range *page.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return probe.PageSpec{}, "", fmt.Errorf("invalid pattern %q for url %s: %w", pattern, page.URL, err)
		}
	}

	warning := ""
	if len(*page.Patterns) == 0 {
		warning = fmt.Sprintf("no patterns specified for url %s", page.URL)
	}

	return probe.PageSpec{URL: page.URL, Patterns: *page.Patterns}, warning, nil
}

// pick resolves the flag > file > default precedence.
func pick(flag *int, file *int, fallback int) int {
	if flag != nil {
		return *flag
	}
	if file != nil {
		return *file
	}
	return fallback
}
