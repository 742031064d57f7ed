package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wudi/quotekit/config"
	"github.com/wudi/quotekit/pipeline"
)

func TestOutputPaths(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		inputs []string
		out    string
		want   []string
	}{
		{"suffix", []string{"a/devis.pdf", "b/other.pdf"}, "", []string{"a/devis_modifie.pdf", "b/other_modifie.pdf"}},
		{"single file", []string{"devis.pdf"}, filepath.Join(dir, "final.pdf"), []string{filepath.Join(dir, "final.pdf")}},
		{"directory", []string{"a/devis.pdf", "b/other.pdf"}, dir, []string{filepath.Join(dir, "devis_modifie.pdf"), filepath.Join(dir, "other_modifie.pdf")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := outputPaths(tt.inputs, tt.out, "_modifie")
			if err != nil {
				t.Fatalf("outputPaths: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("paths (-want +got):\n%s", diff)
			}
		})
	}
	if _, err := outputPaths([]string{"a/devis.pdf", "b/devis.pdf"}, dir, "_modifie"); err == nil {
		t.Fatalf("expected collision error")
	}
	if _, err := outputPaths([]string{"a.pdf", "b.pdf"}, filepath.Join(dir, "absent"), "_modifie"); err == nil {
		t.Fatalf("expected missing directory error")
	}
}

func TestSampleThenInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.pdf")
	if err := writeSample(context.Background(), path, true); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "logo.png")); err != nil {
		t.Fatalf("logo: %v", err)
	}
	var buf bytes.Buffer
	if err := inspect(context.Background(), pipeline.New(config.Default()), []string{path}, &buf); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var report map[string]pipeline.Info
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report[path].Pages != 2 || report[path].PageList[1].Height != 842 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRun_FailureDoesNotStopSiblings(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	bad := filepath.Join(in, "a_bad.pdf")
	good := filepath.Join(in, "b_good.pdf")
	if err := os.WriteFile(bad, []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writeSample(context.Background(), good, false); err != nil {
		t.Fatalf("sample: %v", err)
	}
	err := run(context.Background(), options{jobs: 1, out: out, inputs: []string{bad, good}})
	if err == nil || !strings.Contains(err.Error(), "a_bad.pdf") {
		t.Fatalf("err = %v, want failure naming a_bad.pdf", err)
	}
	if pipeline.KindOf(err) != pipeline.KindInput {
		t.Fatalf("kind = %v", pipeline.KindOf(err))
	}
	if _, err := os.Stat(filepath.Join(out, "b_good_modifie.pdf")); err != nil {
		t.Fatalf("valid input not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "a_bad_modifie.pdf")); !os.IsNotExist(err) {
		t.Fatalf("bad input produced output: %v", err)
	}
}
