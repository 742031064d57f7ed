package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quotekit.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := cfg.Redaction.AllPages[0].Rect; got != [4]float64{20, 42, 570, 82} {
		t.Fatalf("banner zone = %v", got)
	}
	if len(cfg.Finance.Placements) != 3 || cfg.Finance.Anchor != "ACOMPTE 30%" {
		t.Fatalf("finance = %+v", cfg.Finance)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
[redaction]
strategy = "overlay"
fill = "#ff8000"

[[redaction.all_pages]]
label = "band"
rect = [0, 0, 595, 60]

[overlay]
mode = "surface"

[overlay.stamp]
text = "COPIE"
color = [0.5, 0, 1]

[finance]
anchor = "ACOMPTE 40%"
`)
	t.Setenv("QUOTEKIT_ANCHOR", "ACOMPTE 30 %")
	t.Setenv("QUOTEKIT_CLIENT_NAME", "Mme Durand")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Redaction.Strategy != "overlay" || cfg.Overlay.Mode != "surface" {
		t.Fatalf("strategy/mode = %q/%q", cfg.Redaction.Strategy, cfg.Overlay.Mode)
	}
	if diff := cmp.Diff([]ZoneConfig{{Label: "band", Rect: [4]float64{0, 0, 595, 60}}}, cfg.Redaction.AllPages); diff != "" {
		t.Fatalf("all pages (-want +got):\n%s", diff)
	}
	if len(cfg.Redaction.FirstPage) != 3 {
		t.Fatalf("first page zones lost: %v", cfg.Redaction.FirstPage)
	}
	if cfg.Redaction.Fill.String() != "#ff8000" || !cfg.Redaction.Fill.IsSet() {
		t.Fatalf("fill = %v", cfg.Redaction.Fill)
	}
	if cfg.Overlay.Stamp.Text != "COPIE" || cfg.Overlay.Stamp.Color.String() != "#8000ff" || cfg.Overlay.Stamp.Size != 40 {
		t.Fatalf("stamp = %+v", cfg.Overlay.Stamp)
	}
	if cfg.Finance.Anchor != "ACOMPTE 30 %" {
		t.Fatalf("env anchor not applied: %q", cfg.Finance.Anchor)
	}
	if got := cfg.Overlay.Client.Lines[0].Text; got != "Mme Durand" {
		t.Fatalf("client = %q", got)
	}
	if Default().Overlay.Client.Lines[0].Text != "Nom prénom" {
		t.Fatalf("defaults mutated")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[redaction\n", "parse config"},
		{"unknown key", "[redaction]\nstrategie = \"overlay\"\n", "unknown key"},
		{"bad strategy", "[redaction]\nstrategy = \"shred\"\n", "redaction.strategy"},
		{"bad color", "[redaction]\nfill = \"#12\"\n", "color"},
		{"color range", "[redaction]\nfill = [2, 0, 0]\n", "outside"},
		{"bad edge", "[[overlay.edge_bars]]\nedge = \"middle\"\nthickness = 4\n", "edge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func TestLoad_EnvBool(t *testing.T) {
	t.Setenv("QUOTEKIT_INCLUDE_OPTIONAL", "true")
	cfg, err := Load("")
	if err != nil || !On(cfg.Redaction.IncludeOptional) {
		t.Fatalf("cfg = %+v, err = %v", cfg.Redaction, err)
	}
	t.Setenv("QUOTEKIT_INCLUDE_OPTIONAL", "maybe")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	override := Config{
		Redaction: RedactionConfig{Fill: Black},
		Overlay:   OverlayConfig{Logo: ImageConfig{Path: "/srv/logo.jpg"}},
		Metadata:  MetadataConfig{Custom: map[string]string{"Reference": "Q-1"}},
	}
	got := Merge(base, override)
	if got.Redaction.Fill != Black {
		t.Fatalf("explicit black not applied: %v", got.Redaction.Fill)
	}
	if got.Overlay.Logo.Path != "/srv/logo.jpg" || got.Overlay.Logo.Rect != base.Overlay.Logo.Rect {
		t.Fatalf("logo = %+v", got.Overlay.Logo)
	}
	if got.Redaction.Strategy != "destructive" || got.Metadata.Custom["Reference"] != "Q-1" {
		t.Fatalf("merge = %+v", got)
	}
	if base.Redaction.Fill != White {
		t.Fatalf("base modified")
	}
}

func TestMerge_SwitchesTurnOff(t *testing.T) {
	base := Default()
	base.Redaction.IncludeOptional = Bool(true)
	base.Finance.Skip = Bool(true)
	base.Output.Deterministic = Bool(true)
	base.Overlay.PageNumbers.Enabled = Bool(true)

	got := Merge(base, Config{
		Redaction: RedactionConfig{IncludeOptional: Bool(false)},
		Finance:   FinanceConfig{Skip: Bool(false)},
		Output:    OutputConfig{Deterministic: Bool(false)},
		Overlay:   OverlayConfig{PageNumbers: PageNumberConfig{Enabled: Bool(false)}},
	})
	for name, b := range map[string]*bool{
		"include_optional": got.Redaction.IncludeOptional,
		"skip":             got.Finance.Skip,
		"deterministic":    got.Output.Deterministic,
		"page_numbers":     got.Overlay.PageNumbers.Enabled,
	} {
		if b == nil || *b {
			t.Fatalf("%s not turned off", name)
		}
	}
	if kept := Merge(base, Config{}); !On(kept.Finance.Skip) {
		t.Fatalf("unset switch overrode the base")
	}

	path := writeConfig(t, "[output]\ndeterministic = false\n")
	var file Config
	if _, err := toml.DecodeFile(path, &file); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if On(Merge(base, file).Output.Deterministic) {
		t.Fatalf("file could not turn deterministic off")
	}
}

func TestColor_RoundTrip(t *testing.T) {
	var v struct {
		C Color `toml:"c"`
	}
	if _, err := toml.Decode(`c = "#5ab1eb"`, &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.C != AccentBlue {
		t.Fatalf("color = %v, want %v", v.C, AccentBlue)
	}
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(v); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.TrimSpace(b.String()) != `c = "#5ab1eb"` {
		t.Fatalf("encoded %q", b.String())
	}
	if c, err := ParseColor("#fff"); err != nil || c != White {
		t.Fatalf("short form = %v, %v", c, err)
	}
}
