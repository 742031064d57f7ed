// Package pipeline runs the quote transformation: blank the supplier's
// zones, draw the replacement design, write the payment schedule on the
// last page, update the metadata and serialize.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wudi/quotekit/builder"
	"github.com/wudi/quotekit/config"
	"github.com/wudi/quotekit/coords"
	"github.com/wudi/quotekit/document"
	"github.com/wudi/quotekit/finance"
	"github.com/wudi/quotekit/ir/raw"
	"github.com/wudi/quotekit/observability"
	"github.com/wudi/quotekit/overlay"
	"github.com/wudi/quotekit/parser"
	"github.com/wudi/quotekit/redact"
	"github.com/wudi/quotekit/writer"
)

// Stage names, in execution order.
const (
	StageOpen     = "open"
	StageRedact   = "redact"
	StageOverlay  = "overlay"
	StageFinance  = "finance"
	StageMetadata = "metadata"
	StageWrite    = "write"
)

// kind given to stage errors that carry none
var stageKinds = map[string]Kind{
	StageOpen:     KindInput,
	StageRedact:   KindInput,
	StageOverlay:  KindResource,
	StageFinance:  KindExtraction,
	StageMetadata: KindWrite,
	StageWrite:    KindWrite,
}

type StageStatus string

const (
	StatusOK      StageStatus = "ok"
	StatusWarning StageStatus = "warning"
	StatusSkipped StageStatus = "skipped"
	StatusFailed  StageStatus = "failed"
)

type StageResult struct {
	Stage    string
	Status   StageStatus
	Duration time.Duration
	Detail   string
	Err      error
}

type WriteStats struct {
	Objects int
	Bytes   int64
}

// Result describes one run. Output is nil when the run failed.
type Result struct {
	RunID     string
	Output    []byte
	Pages     int
	Stages    []StageResult
	Redaction redact.Result
	Overlay   overlay.Report
	Finance   finance.Outcome
	Write     WriteStats
	Warnings  []string
}

// Stage returns the result of the named stage, if it ran.
func (r *Result) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

type Option func(*Pipeline)

func WithLogger(l observability.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func WithTracer(t observability.Tracer) Option { return func(p *Pipeline) { p.tracer = t } }

// WithClock sets the time recorded as the modification date.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func WithImageLoader(l overlay.ImageLoader) Option { return func(p *Pipeline) { p.images = l } }

// WithLineSource replaces the reader used to find the quote total.
func WithLineSource(s finance.LineSource) Option { return func(p *Pipeline) { p.lines = s } }

// WithOverrides merges c over the configuration given to New.
func WithOverrides(c config.Config) Option {
	return func(p *Pipeline) { p.overrides = append(p.overrides, c) }
}

func WithParserConfig(c parser.Config) Option { return func(p *Pipeline) { p.parserCfg = c } }

// Pipeline is safe for concurrent use: every run opens its own document
// and the configuration is fixed at construction.
type Pipeline struct {
	cfg       config.Config
	overrides []config.Config
	logger    observability.Logger
	tracer    observability.Tracer
	now       func() time.Time
	images    overlay.ImageLoader
	lines     finance.LineSource
	parserCfg parser.Config

	zones        redact.ZoneSet
	plan         overlay.Plan
	fontOpts     []overlay.Option
	fontWarnings []string
}

func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		logger: observability.NopLogger{},
		tracer: observability.NopTracer(),
		now:    time.Now,
		images: overlay.FileLoader{},
	}
	for _, opt := range opts {
		opt(p)
	}
	for _, o := range p.overrides {
		p.cfg = config.Merge(p.cfg, o)
	}
	p.overrides = nil
	p.zones = zoneSet(p.cfg.Redaction)
	p.plan = overlayPlan(p.cfg.Overlay)
	p.fontOpts, p.fontWarnings = fontOptions(p.cfg.Overlay.Fonts)
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() config.Config { return p.cfg }

type run struct {
	p   *Pipeline
	res *Result
	log observability.Logger
}

// Transform runs every stage on input. Input, geometry and write errors
// end the run with a *Error; overlay and schedule problems are recorded in
// the result and the run goes on.
func (p *Pipeline) Transform(ctx context.Context, input []byte) (*Result, error) {
	res := &Result{RunID: observability.NewRunID()}
	r := &run{p: p, res: res, log: p.logger.With(observability.String(observability.KeyRunID, res.RunID))}

	ctx, span := p.tracer.StartSpan(ctx, "quotekit.transform")
	defer span.Finish()
	span.SetTag(observability.KeyRunID, res.RunID)

	if err := p.cfg.Validate(); err != nil {
		err = &Error{Kind: KindInput, Op: "config", Err: err}
		span.SetError(err)
		return res, err
	}

	var doc *document.Document
	steps := []struct {
		name string
		fn   stageFunc
	}{
		{StageOpen, func(ctx context.Context) (StageStatus, string, error) {
			d, err := document.Open(ctx, input, p.parserCfg)
			if err != nil {
				return "", "", err
			}
			doc = d
			res.Pages = d.PageCount()
			return StatusOK, fmt.Sprintf("%d pages, version %s", d.PageCount(), d.Raw().Version), nil
		}},
		{StageRedact, func(ctx context.Context) (StageStatus, string, error) { return r.redact(ctx, doc) }},
		{StageOverlay, func(ctx context.Context) (StageStatus, string, error) { return r.overlay(ctx, doc) }},
		{StageFinance, func(ctx context.Context) (StageStatus, string, error) { return r.finance(ctx, doc) }},
		{StageMetadata, func(ctx context.Context) (StageStatus, string, error) { return r.metadata(doc) }},
		{StageWrite, func(ctx context.Context) (StageStatus, string, error) { return r.write(ctx, doc) }},
	}
	for _, step := range steps {
		if err := r.stage(ctx, step.name, step.fn); err != nil {
			span.SetError(err)
			res.Output = nil
			return res, err
		}
	}
	span.SetTag(observability.KeyPages, res.Pages)
	span.SetTag(observability.KeyBytes, len(res.Output))
	r.log.Info("quote transformed",
		observability.Int(observability.KeyPages, res.Pages),
		observability.Int(observability.KeyBytes, len(res.Output)),
		observability.Int("warnings", len(res.Warnings)))
	return res, nil
}

type stageFunc func(ctx context.Context) (StageStatus, string, error)

// stage runs fn under its own span, recovering panics. It returns the
// errors that end the run.
func (r *run) stage(ctx context.Context, name string, fn stageFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := r.p.tracer.StartSpan(ctx, "quotekit."+name)
	defer span.Finish()
	span.SetTag(observability.KeyStage, name)
	log := r.log.With(observability.String(observability.KeyStage, name))

	start := time.Now()
	status, detail, err := call(ctx, fn)
	sr := StageResult{Stage: name, Status: status, Duration: time.Since(start), Detail: detail}
	if err != nil && !isContext(err) && KindOf(err) == 0 {
		err = &Error{Kind: stageKinds[name], Op: name, Err: err}
	}
	sr.Err = err
	if err != nil {
		sr.Status = StatusFailed
		span.SetError(err)
	}
	r.res.Stages = append(r.res.Stages, sr)
	ms := float64(sr.Duration.Microseconds()) / 1000

	switch {
	case err == nil:
		log.Info("stage done",
			observability.String("status", string(sr.Status)),
			observability.String("detail", detail),
			observability.Float(observability.KeyDuration, ms))
		return nil
	case isContext(err) || KindOf(err).Fatal():
		log.Error("stage failed", observability.Error("error", err), observability.Float(observability.KeyDuration, ms))
		return err
	default:
		log.Warn("stage failed, continuing", observability.Error("error", err))
		r.res.Warnings = append(r.res.Warnings, err.Error())
		return nil
	}
}

func call(ctx context.Context, fn stageFunc) (status StageStatus, detail string, err error) {
	defer func() {
		if v := recover(); v != nil {
			status = StatusFailed
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return fn(ctx)
}

func isContext(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *run) redact(ctx context.Context, doc *document.Document) (StageStatus, string, error) {
	cfg := r.p.cfg.Redaction
	if r.p.zones.Len() == 0 {
		return StatusSkipped, "no zones", nil
	}
	strategy, err := redact.New(cfg.Strategy, color(cfg.Fill, builder.White))
	if err != nil {
		return "", "", err
	}
	engine := redact.NewEngine(strategy, r.log)
	rr, err := engine.Redact(ctx, doc, r.p.zones)
	r.res.Redaction = rr
	if err != nil {
		var ge *coords.GeometryError
		if errors.As(err, &ge) {
			return "", "", &Error{Kind: KindGeometry, Op: StageRedact, Err: err}
		}
		return "", "", err
	}
	detail := fmt.Sprintf("%s: %d marks on %d pages", rr.Strategy, rr.Marks, rr.Pages)
	if len(rr.Clamped) > 0 {
		for _, c := range rr.Clamped {
			r.res.Warnings = append(r.res.Warnings, "zone clamped, "+c)
		}
		return StatusWarning, detail, nil
	}
	return StatusOK, detail, nil
}

func (r *run) overlay(ctx context.Context, doc *document.Document) (StageStatus, string, error) {
	if len(r.p.plan.Layers) == 0 {
		return StatusSkipped, "empty design", nil
	}
	mode, err := overlay.ParseMode(r.p.cfg.Overlay.Mode)
	if err != nil {
		return "", "", err
	}
	opts := append([]overlay.Option{
		overlay.WithMode(mode),
		overlay.WithImageLoader(r.p.images),
		overlay.WithLogger(r.log),
	}, r.p.fontOpts...)
	report, err := overlay.NewCompositor(opts...).Compose(ctx, doc, r.p.plan)
	r.res.Overlay = report
	r.res.Warnings = append(r.res.Warnings, r.p.fontWarnings...)
	for _, w := range report.Warnings {
		r.res.Warnings = append(r.res.Warnings, w.String())
	}
	if err != nil {
		return "", "", err
	}
	detail := fmt.Sprintf("%s: %d elements on %d pages", report.Mode, report.Elements, report.Pages)
	if len(report.Warnings) > 0 || len(r.p.fontWarnings) > 0 {
		return StatusWarning, detail, nil
	}
	return StatusOK, detail, nil
}

func (r *run) finance(ctx context.Context, doc *document.Document) (StageStatus, string, error) {
	cfg := r.p.cfg.Finance
	if config.On(cfg.Skip) {
		r.res.Finance = finance.Outcome{Status: finance.Skipped, Reason: "disabled"}
		return StatusSkipped, "disabled", nil
	}
	loc, err := locator(cfg, r.p.lines)
	if err != nil {
		return "", "", err
	}
	opts := []finance.Option{finance.WithLogger(r.log)}
	if len(cfg.Splits) > 0 {
		opts = append(opts, finance.WithSplits(splits(cfg.Splits)))
	}
	if len(cfg.Placements) > 0 {
		opts = append(opts, finance.WithPlacements(placements(cfg.Placements)))
	}
	outcome, err := finance.NewSchedule(loc, opts...).Apply(ctx, doc)
	r.res.Finance = outcome
	if err != nil {
		return "", "", err
	}
	if outcome.Status == finance.Skipped {
		r.res.Warnings = append(r.res.Warnings, "payment schedule skipped: "+outcome.Reason)
		return StatusSkipped, outcome.Reason, nil
	}
	parts := make([]string, len(outcome.Derived))
	for i, d := range outcome.Derived {
		parts[i] = d.Label + "=" + d.Value.String()
	}
	return StatusOK, fmt.Sprintf("total %s; %s", outcome.Total, strings.Join(parts, ", ")), nil
}

func (r *run) metadata(doc *document.Document) (StageStatus, string, error) {
	m := r.p.cfg.Metadata
	entries := make(map[string]string)
	for k, v := range map[string]string{
		"Title":    m.Title,
		"Author":   m.Author,
		"Subject":  m.Subject,
		"Keywords": m.Keywords,
		"Creator":  m.Creator,
		"Producer": m.Producer,
	} {
		if v != "" {
			entries[k] = v
		}
	}
	for k, v := range m.Custom {
		entries[k] = v
	}
	doc.SetInfo(entries)
	doc.Touch(r.p.now())
	return StatusOK, fmt.Sprintf("%d entries", len(entries)), nil
}

// writeCounter counts the objects serialized.
type writeCounter struct {
	objects int
}

func (c *writeCounter) BeforeWrite(context.Context, raw.ObjectRef, raw.Object) error { return nil }

func (c *writeCounter) AfterWrite(context.Context, raw.ObjectRef, int64) error {
	c.objects++
	return nil
}

func (r *run) write(ctx context.Context, doc *document.Document) (StageStatus, string, error) {
	out := r.p.cfg.Output
	counter := &writeCounter{}
	wr := (&writer.WriterBuilder{}).WithInterceptor(counter).Build()
	var buf bytes.Buffer
	err := doc.Save(ctx, &buf, wr, writer.Config{
		Version:         out.Version,
		CompressStreams: !config.On(out.Uncompressed),
		Deterministic:   config.On(out.Deterministic),
		GarbageCollect:  true,
	})
	if err != nil {
		return "", "", err
	}
	r.res.Output = buf.Bytes()
	r.res.Write = WriteStats{Objects: counter.objects, Bytes: int64(buf.Len())}
	return StatusOK, fmt.Sprintf("%d objects, %d bytes", counter.objects, buf.Len()), nil
}

// Process transforms the file at inPath into outPath. The output appears
// complete or not at all.
func (p *Pipeline) Process(ctx context.Context, inPath, outPath string) (*Result, error) {
	input, err := os.ReadFile(inPath)
	if err != nil {
		return nil, &Error{Kind: KindInput, Op: "read", Err: err}
	}
	res, err := p.Transform(ctx, input)
	if err != nil {
		return res, err
	}
	if err := writeFile(outPath, res.Output); err != nil {
		return res, &Error{Kind: KindWrite, Op: "save", Err: err}
	}
	return res, nil
}

// writeFile writes through a temporary file in the target directory and
// renames it into place.
func writeFile(path string, data []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()
	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// OutputPath names the output written next to in: "devis.pdf" becomes
// "devis<suffix>.pdf".
func OutputPath(in, suffix string) string {
	ext := filepath.Ext(in)
	if ext == "" {
		ext = ".pdf"
	}
	return strings.TrimSuffix(in, filepath.Ext(in)) + suffix + ext
}

type PageInfo struct {
	Number   int     `json:"number"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation int     `json:"rotation"`
}

// Info describes a document without changing it.
type Info struct {
	Pages    int               `json:"pages"`
	Version  string            `json:"version"`
	Metadata map[string]string `json:"metadata"`
	PageList []PageInfo        `json:"page_list"`
}

func (p *Pipeline) Inspect(ctx context.Context, input []byte) (Info, error) {
	doc, err := document.Open(ctx, input, p.parserCfg)
	if err != nil {
		return Info{}, &Error{Kind: KindInput, Op: "inspect", Err: err}
	}
	info := Info{
		Pages:    doc.PageCount(),
		Version:  doc.Raw().Version,
		Metadata: doc.Info(),
	}
	for _, page := range doc.Pages() {
		m := page.MediaBox()
		info.PageList = append(info.PageList, PageInfo{
			Number:   page.Number(),
			Width:    m.Width(),
			Height:   m.Height(),
			Rotation: page.Rotation(),
		})
	}
	return info, nil
}
