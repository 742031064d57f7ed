// Command quotekit rebrands supplier quotes: it blanks the supplier's
// identity, draws the reseller's design and writes the payment schedule.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/config"
	"github.com/wudi/quotekit/observability"
	"github.com/wudi/quotekit/parser"
	"github.com/wudi/quotekit/pipeline"
	"github.com/wudi/quotekit/writer"
)

type options struct {
	configPath  string
	out         string
	strategy    string
	logo        string
	password    string
	client      [3]string
	jobs        int
	inspect     bool
	sample      string
	sampleLogo  bool
	printConfig bool
	trace       bool
	inputs      []string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "quotekit: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "quotekit: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: quotekit [flags] <quote.pdf>...\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.configPath, "config", "", "TOML design file (defaults apply when empty)")
	flag.StringVar(&opts.out, "out", "", "Output file, or directory when several inputs are given")
	flag.StringVar(&opts.strategy, "strategy", "", "Redaction strategy: destructive, overlay or preview")
	flag.StringVar(&opts.logo, "logo", "", "Logo image (PNG or JPEG)")
	flag.StringVar(&opts.password, "password", "", "Password for encrypted quotes (permission-only files need none)")
	flag.StringVar(&opts.client[0], "client-name", "", "Client name line")
	flag.StringVar(&opts.client[1], "client-address1", "", "First client address line")
	flag.StringVar(&opts.client[2], "client-address2", "", "Second client address line")
	flag.IntVar(&opts.jobs, "jobs", 4, "Files processed concurrently")
	flag.BoolVar(&opts.inspect, "inspect", false, "Print page information as JSON instead of transforming")
	flag.StringVar(&opts.sample, "sample", "", "Write a demo quote to this path and exit")
	flag.BoolVar(&opts.sampleLogo, "sample-logo", false, "With -sample, also write logo.png next to the quote")
	flag.BoolVar(&opts.printConfig, "print-config", false, "Print the effective configuration as TOML and exit")
	flag.BoolVar(&opts.trace, "trace", false, "Log one record per stage span")
	flag.Parse()

	opts.inputs = flag.Args()
	if len(opts.inputs) == 0 && opts.sample == "" && !opts.printConfig {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	if opts.jobs < 1 {
		opts.jobs = 1
	}
	return opts, nil
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	override := config.Config{
		Redaction: config.RedactionConfig{Strategy: opts.strategy},
		Overlay:   config.OverlayConfig{Logo: config.ImageConfig{Path: opts.logo}},
	}
	cfg = config.Merge(cfg, override)
	cfg.SetClient(opts.client[0], opts.client[1], opts.client[2])
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.printConfig {
		return toml.NewEncoder(os.Stdout).Encode(cfg)
	}

	logger := newLogger(cfg.Log, os.Stderr)
	if opts.sample != "" {
		return writeSample(ctx, opts.sample, opts.sampleLogo)
	}

	tracer := observability.NopTracer()
	if opts.trace {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanLogger{logger: logger}))
		defer tp.Shutdown(context.Background())
		tracer = observability.OTelTracerFrom(tp)
	}

	p := pipeline.New(cfg,
		pipeline.WithLogger(observability.NewSlog(logger)),
		pipeline.WithTracer(tracer),
		pipeline.WithParserConfig(parser.Config{Password: opts.password}))

	if opts.inspect {
		return inspect(ctx, p, opts.inputs, os.Stdout)
	}

	outputs, err := outputPaths(opts.inputs, opts.out, cfg.Output.Suffix)
	if err != nil {
		return err
	}
	// Files are independent: one failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(opts.jobs)
	errs := make([]error, len(opts.inputs))
	for i, in := range opts.inputs {
		out := outputs[i]
		g.Go(func() error {
			res, err := p.Process(ctx, in, out)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", in, err)
				logger.Error("failed", "file", in, "error", err)
				return nil
			}
			for _, w := range res.Warnings {
				logger.Warn("warning", "file", in, "detail", w)
			}
			logger.Info("written", "file", out, "pages", res.Pages, "bytes", len(res.Output), "schedule", string(res.Finance.Status))
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

// outputPaths maps inputs to outputs: the -out file for a single input, a
// file in the -out directory, or a suffixed name next to the input.
func outputPaths(inputs []string, out, suffix string) ([]string, error) {
	paths := make([]string, len(inputs))
	if out != "" && len(inputs) == 1 {
		if fi, err := os.Stat(out); err != nil || !fi.IsDir() {
			paths[0] = out
			return paths, nil
		}
	}
	if out != "" {
		fi, err := os.Stat(out)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			return nil, fmt.Errorf("-out %s: not a directory", out)
		}
	}
	seen := make(map[string]string)
	for i, in := range inputs {
		p := pipeline.OutputPath(in, suffix)
		if out != "" {
			p = filepath.Join(out, filepath.Base(p))
		}
		if prev, dup := seen[p]; dup {
			return nil, fmt.Errorf("%s and %s both write %s", prev, in, p)
		}
		seen[p] = in
		paths[i] = p
	}
	return paths, nil
}

func inspect(ctx context.Context, p *pipeline.Pipeline, inputs []string, w io.Writer) error {
	report := make(map[string]pipeline.Info, len(inputs))
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		info, err := p.Inspect(ctx, data)
		if err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		report[in] = info
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeSample(ctx context.Context, path string, logo bool) error {
	q := builder.DefaultSampleQuote()
	q.Pages = 2
	var buf bytes.Buffer
	if err := q.Document().Save(ctx, &buf, nil, writer.Config{CompressStreams: true}); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return err
	}
	if !logo {
		return nil
	}
	f, err := os.Create(filepath.Join(filepath.Dir(path), "logo.png"))
	if err != nil {
		return err
	}
	if err := png.Encode(f, builder.SampleLogo(200, 160)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger(cfg config.LogConfig, w *os.File) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if term.IsTerminal(int(w.Fd())) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, hopts))
	}
	return slog.New(slog.NewJSONHandler(w, hopts))
}

// spanLogger logs finished spans.
type spanLogger struct {
	logger *slog.Logger
}

func (spanLogger) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (s spanLogger) OnEnd(span sdktrace.ReadOnlySpan) {
	attrs := []any{"span", span.Name(), "duration", span.EndTime().Sub(span.StartTime()).Round(time.Microsecond).String()}
	if st := span.Status(); st.Description != "" {
		attrs = append(attrs, "error", st.Description)
	}
	s.logger.Info("span", attrs...)
}

func (spanLogger) Shutdown(context.Context) error   { return nil }
func (spanLogger) ForceFlush(context.Context) error { return nil }

var _ sdktrace.SpanProcessor = spanLogger{}
