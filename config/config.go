// Package config holds the quote design: zones to blank, the replacement
// overlay, the payment schedule and output settings. Coordinates are PDF
// points from the lower-left corner of the page.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/currency"
)

type Config struct {
	Redaction RedactionConfig `toml:"redaction"`
	Overlay   OverlayConfig   `toml:"overlay"`
	Finance   FinanceConfig   `toml:"finance"`
	Metadata  MetadataConfig  `toml:"metadata"`
	Output    OutputConfig    `toml:"output"`
	Log       LogConfig       `toml:"log"`
}

type RedactionConfig struct {
	Strategy        string       `toml:"strategy"`
	Fill            Color        `toml:"fill"`
	FirstPage       []ZoneConfig `toml:"first_page"`
	AllPages        []ZoneConfig `toml:"all_pages"`
	Optional        []ZoneConfig `toml:"optional"`
	IncludeOptional *bool        `toml:"include_optional"`
}

type ZoneConfig struct {
	Label string     `toml:"label"`
	Rect  [4]float64 `toml:"rect"`
}

type OverlayConfig struct {
	Mode        string           `toml:"mode"`
	Fonts       []FontConfig     `toml:"fonts"`
	Logo        ImageConfig      `toml:"logo"`
	Company     BlockConfig      `toml:"company"`
	Client      BlockConfig      `toml:"client"`
	Quote       BlockConfig      `toml:"quote"`
	Footer      BlockConfig      `toml:"footer"`
	Separators  []RectConfig     `toml:"separators"`
	Stamp       StampConfig      `toml:"stamp"`
	PageNumbers PageNumberConfig `toml:"page_numbers"`
	EdgeBars    []EdgeBarConfig  `toml:"edge_bars"`
}

// FontConfig registers a TrueType file under a name usable in text blocks.
type FontConfig struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

type ImageConfig struct {
	Path  string     `toml:"path"`
	Rect  [4]float64 `toml:"rect"`
	Scope string     `toml:"scope"`
}

// BlockConfig is a group of filled rectangles and text lines drawn on the
// same pages.
type BlockConfig struct {
	Scope       string       `toml:"scope"`
	Backgrounds []RectConfig `toml:"backgrounds"`
	Lines       []TextConfig `toml:"lines"`
}

type RectConfig struct {
	Label string     `toml:"label"`
	Rect  [4]float64 `toml:"rect"`
	Color Color      `toml:"color"`
	Scope string     `toml:"scope"`
}

type TextConfig struct {
	Text  string     `toml:"text"`
	At    [2]float64 `toml:"at"`
	Font  string     `toml:"font"`
	Size  float64    `toml:"size"`
	Color Color      `toml:"color"`
	Align string     `toml:"align"`
}

// StampConfig is a diagonal text across every page; disabled when Text is
// empty.
type StampConfig struct {
	Text     string      `toml:"text"`
	Font     string      `toml:"font"`
	Size     float64     `toml:"size"`
	Rotation float64     `toml:"rotation"`
	Opacity  float64     `toml:"opacity"`
	Color    Color       `toml:"color"`
	Pivot    *[2]float64 `toml:"pivot"`
}

type PageNumberConfig struct {
	Enabled *bool      `toml:"enabled"`
	Format  string     `toml:"format"`
	At      [2]float64 `toml:"at"`
	Size    float64    `toml:"size"`
	Align   string     `toml:"align"`
}

type EdgeBarConfig struct {
	Edge      string  `toml:"edge"`
	Thickness float64 `toml:"thickness"`
	Color     Color   `toml:"color"`
	Scope     string  `toml:"scope"`
}

type FinanceConfig struct {
	Skip     *bool  `toml:"skip"`
	Anchor   string `toml:"anchor"`
	Currency string `toml:"currency"`
	// Source selects the line reader: "content" or "pdftext".
	Source string `toml:"source"`
	// Total, when set, is used instead of scanning the page.
	Total      string            `toml:"total"`
	Splits     []SplitConfig     `toml:"splits"`
	Placements []PlacementConfig `toml:"placements"`
}

type SplitConfig struct {
	Label   string  `toml:"label"`
	Percent float64 `toml:"percent"`
}

type PlacementConfig struct {
	Split    string     `toml:"split"`
	At       [2]float64 `toml:"at"`
	Template string     `toml:"template"`
	Font     string     `toml:"font"`
	Size     float64    `toml:"size"`
}

type MetadataConfig struct {
	Title    string            `toml:"title"`
	Author   string            `toml:"author"`
	Subject  string            `toml:"subject"`
	Keywords string            `toml:"keywords"`
	Creator  string            `toml:"creator"`
	Producer string            `toml:"producer"`
	Custom   map[string]string `toml:"custom"`
}

type OutputConfig struct {
	Uncompressed  *bool  `toml:"uncompressed"`
	Deterministic *bool  `toml:"deterministic"`
	Version       string `toml:"version"`
	// Suffix names outputs written next to their input.
	Suffix string `toml:"suffix"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text, json or auto
}

// Load reads config: defaults -> TOML file -> env vars (env wins). An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		var file Config
		md, err := toml.Decode(string(data), &file)
		if err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, fmt.Errorf("parse config %s: unknown key %s", path, undecoded[0])
		}
		cfg = Merge(cfg, file)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("QUOTEKIT_STRATEGY"); v != "" {
		cfg.Redaction.Strategy = v
	}
	if v := os.Getenv("QUOTEKIT_OVERLAY_MODE"); v != "" {
		cfg.Overlay.Mode = v
	}
	if v := os.Getenv("QUOTEKIT_LOGO"); v != "" {
		cfg.Overlay.Logo.Path = v
	}
	if v := os.Getenv("QUOTEKIT_ANCHOR"); v != "" {
		cfg.Finance.Anchor = v
	}
	if v := os.Getenv("QUOTEKIT_CURRENCY"); v != "" {
		cfg.Finance.Currency = v
	}
	if v := os.Getenv("QUOTEKIT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("QUOTEKIT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	cfg.SetClient(os.Getenv("QUOTEKIT_CLIENT_NAME"), os.Getenv("QUOTEKIT_CLIENT_ADDRESS1"), os.Getenv("QUOTEKIT_CLIENT_ADDRESS2"))
	if v := os.Getenv("QUOTEKIT_INCLUDE_OPTIONAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("QUOTEKIT_INCLUDE_OPTIONAL: %w", err)
		}
		cfg.Redaction.IncludeOptional = &b
	}
	return nil
}

// Bool returns a pointer to v. Switches are pointers so that an override
// can turn off what the base turned on.
func Bool(v bool) *bool { return &v }

// On reports whether a switch is set and true.
func On(b *bool) bool { return b != nil && *b }

// SetClient replaces the client block lines that are given. Empty values
// keep the configured text.
func (c *Config) SetClient(name, address1, address2 string) {
	for i, v := range []string{name, address1, address2} {
		if v == "" {
			continue
		}
		lines := c.Overlay.Client.Lines
		if i < len(lines) {
			// the slice may be shared with the defaults
			lines = append([]TextConfig(nil), lines...)
			lines[i].Text = v
			c.Overlay.Client.Lines = lines
		}
	}
}

var errInvalid = errors.New("invalid configuration")

// Validate checks the names used by the configuration. Geometry is checked
// when zones are applied.
func (c Config) Validate() error {
	var errs []error
	switch c.Redaction.Strategy {
	case "", "destructive", "overlay", "mask", "preview":
	default:
		errs = append(errs, fmt.Errorf("redaction.strategy %q", c.Redaction.Strategy))
	}
	switch c.Overlay.Mode {
	case "", "direct", "surface":
	default:
		errs = append(errs, fmt.Errorf("overlay.mode %q", c.Overlay.Mode))
	}
	switch c.Finance.Source {
	case "", "content", "pdftext":
	default:
		errs = append(errs, fmt.Errorf("finance.source %q", c.Finance.Source))
	}
	if c.Finance.Currency != "" {
		if _, err := currency.ParseISO(c.Finance.Currency); err != nil {
			errs = append(errs, fmt.Errorf("finance.currency %q", c.Finance.Currency))
		}
	}
	for _, b := range c.Overlay.EdgeBars {
		switch b.Edge {
		case "top", "bottom", "left", "right":
		default:
			errs = append(errs, fmt.Errorf("overlay.edge_bars edge %q", b.Edge))
		}
	}
	for _, f := range c.Overlay.Fonts {
		if f.Name == "" || f.Path == "" {
			errs = append(errs, fmt.Errorf("overlay.fonts entry needs name and path"))
		}
	}
	for _, s := range c.scopes() {
		switch s {
		case "", "first", "last", "all":
		default:
			errs = append(errs, fmt.Errorf("overlay scope %q", s))
		}
	}
	for _, a := range c.aligns() {
		switch a {
		case "", "left", "center", "right":
		default:
			errs = append(errs, fmt.Errorf("overlay align %q", a))
		}
	}
	switch c.Log.Format {
	case "", "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errInvalid, errors.Join(errs...))
	}
	return nil
}

func (c Config) scopes() []string {
	o := c.Overlay
	out := []string{o.Logo.Scope, o.Company.Scope, o.Client.Scope, o.Quote.Scope, o.Footer.Scope}
	for _, b := range []BlockConfig{o.Company, o.Client, o.Quote, o.Footer} {
		for _, r := range b.Backgrounds {
			out = append(out, r.Scope)
		}
	}
	for _, r := range o.Separators {
		out = append(out, r.Scope)
	}
	for _, e := range o.EdgeBars {
		out = append(out, e.Scope)
	}
	return out
}

func (c Config) aligns() []string {
	o := c.Overlay
	out := []string{o.PageNumbers.Align}
	for _, b := range []BlockConfig{o.Company, o.Client, o.Quote, o.Footer} {
		for _, l := range b.Lines {
			out = append(out, l.Align)
		}
	}
	return out
}

// IsInvalid reports whether err comes from Validate.
func IsInvalid(err error) bool { return errors.Is(err, errInvalid) }
