package scraper

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/discovr-events/harvester/internal/domain/events"
)

// SourceConfig is the declarative per-venue profile loaded from a YAML file.
// It is the only per-venue "code" in the system: onboarding a venue means
// adding a file under configs/sources, not writing a scraper.
type SourceConfig struct {
	Name     string `yaml:"name" validate:"required"`
	URL      string `yaml:"url" validate:"required,http_url"`
	City     string `yaml:"city" validate:"required"`
	Tier     int    `yaml:"tier" validate:"min=0,max=2"`
	Enabled  bool   `yaml:"enabled"`
	MaxPages int    `yaml:"max_pages" validate:"min=0"`

	// Category overrides keyword-derived categorization when set.
	Category string `yaml:"category"`
	// ShowTime is the venue's typical start time ("20:00"), used when a
	// listing has a date but no time.
	ShowTime string `yaml:"show_time" validate:"omitempty,datetime=15:04"`
	// DurationHours overrides the category-based default event duration.
	DurationHours int `yaml:"duration_hours" validate:"min=0"`

	Venue     events.Venue    `yaml:"venue"`
	Selectors SelectorProfile `yaml:"selectors"`
	Notes     string          `yaml:"notes,omitempty"`
}

// SelectorProfile holds the prioritized CSS selector lists for extraction.
// Each field is tried in order; the first selector yielding a non-empty
// result wins. Empty lists fall back to built-in generic selectors.
type SelectorProfile struct {
	Container   []string `yaml:"container"`
	Title       []string `yaml:"title"`
	Date        []string `yaml:"date"`
	Time        []string `yaml:"time"`
	Description []string `yaml:"description"`
	Link        []string `yaml:"link"`
	Image       []string `yaml:"image"`
	Pagination  string   `yaml:"pagination"`

	// TitleDenylist adds per-source chrome words to the built-in denylist.
	TitleDenylist []string `yaml:"title_denylist"`
}

// Source tiers. Tier selects the fetch strategy; extraction is identical.
const (
	TierStatic   = 0 // single static page
	TierCrawl    = 1 // static crawl following pagination
	TierRendered = 2 // headless browser render
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultSourceConfig returns a SourceConfig with defaults applied.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		Enabled:  true,
		Tier:     TierStatic,
		MaxPages: 10,
	}
}

// ValidateConfig checks a SourceConfig, including the structural rule that
// the configured venue belongs to the configured city. A profile that fails
// this check would reject every event at normalization time, so it is
// caught at load time instead.
func ValidateConfig(cfg SourceConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(cfg.Venue.City), strings.TrimSpace(cfg.City)) {
		return fmt.Errorf("venue.city %q does not match city %q", cfg.Venue.City, cfg.City)
	}
	if cfg.Tier == TierCrawl && cfg.Selectors.Pagination == "" && cfg.MaxPages > 1 {
		return fmt.Errorf("selectors.pagination: required for tier 1 with max_pages > 1")
	}
	return nil
}

// LoadSourceConfigs reads all *.yaml files in dir (skipping "_"-prefixed
// files), applies defaults, and validates each. Invalid configs are
// reported together with their file path. A non-existent directory yields
// an empty slice.
func LoadSourceConfigs(dir string) ([]SourceConfig, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []SourceConfig{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading source config dir %s: %w", dir, err)
	}

	var configs []SourceConfig
	var problems []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, "_") {
			continue
		}
		if ext := filepath.Ext(name); ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, name)
		cfg, err := LoadSourceConfig(path)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		configs = append(configs, cfg)
	}

	if len(problems) > 0 {
		return configs, fmt.Errorf("invalid source configs:\n  %s", strings.Join(problems, "\n  "))
	}
	return configs, nil
}

// LoadSourceConfig reads a single YAML profile, applies defaults, and
// validates it.
func LoadSourceConfig(path string) (SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceConfig{}, fmt.Errorf("loading %s: %w", path, err)
	}

	cfg := DefaultSourceConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SourceConfig{}, fmt.Errorf("%s: parsing YAML: %w", path, err)
	}
	if cfg.MaxPages == 0 {
		cfg.MaxPages = 10
	}

	if err := ValidateConfig(cfg); err != nil {
		return SourceConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// FindSource returns the named config, matched case-insensitively.
func FindSource(configs []SourceConfig, name string) (SourceConfig, bool) {
	for _, cfg := range configs {
		if strings.EqualFold(cfg.Name, name) {
			return cfg, true
		}
	}
	return SourceConfig{}, false
}

// showClock parses the configured show time, defaulting to 20:00.
func (c SourceConfig) showClock() (hour, minute int) {
	hour, minute = 20, 0
	parts := strings.SplitN(c.ShowTime, ":", 2)
	if len(parts) != 2 {
		return hour, minute
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return hour, minute
	}
	return h, m
}

// defaultDuration picks the assumed event length when a listing has no end:
// explicit override first, then by category (festivals run a day, club
// nights run long, everything else is an evening show).
func (c SourceConfig) defaultDuration() time.Duration {
	if c.DurationHours > 0 {
		return time.Duration(c.DurationHours) * time.Hour
	}
	switch strings.ToLower(c.Category) {
	case "festival":
		return 24 * time.Hour
	case "nightlife":
		return 5 * time.Hour
	default:
		return 3 * time.Hour
	}
}
