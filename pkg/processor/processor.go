// Package processor runs one annotation pass over a DocFX output folder.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"lastmodified/pkg/annotate"
	"lastmodified/pkg/gitrepo"
	"lastmodified/pkg/history"
	"lastmodified/pkg/ignore"
	"lastmodified/pkg/manifest"
	"lastmodified/pkg/meta"
	"lastmodified/pkg/types"

	"golang.org/x/sync/errgroup"
)

// Summary counts output pages by outcome.
type Summary struct {
	Total          int `json:"total"`
	FromHistory    int `json:"from_history"`
	FromFilesystem int `json:"from_filesystem"`
	Unchanged      int `json:"unchanged"` // no contribution list, nothing written
	Skipped        int `json:"skipped"`   // ignored by .lastmodignore
	Failed         int `json:"failed"`
}

// Annotated is the number of pages that received a date.
func (s Summary) Annotated() int { return s.FromHistory + s.FromFilesystem }

// Ledger records run outcomes. *meta.Repository implements it.
type Ledger interface {
	StartRun(ctx context.Context, head types.Hash, sourceBase string) (*meta.Run, error)
	RecordAnnotation(ctx context.Context, runID uint, rec meta.AnnotationRecord) error
	FinishRun(ctx context.Context, runID uint, stats any) error
}

// PageWriter injects a stamp into one page. *annotate.Writer implements it.
type PageWriter interface {
	Write(outputPath string, s annotate.Stamp) (bool, error)
}

type Options struct {
	// Accessor and Start are empty when no repository was found; every page
	// then falls back to its source file time.
	Accessor history.Accessor
	Start    types.Hash
	Root     string

	Writer  PageWriter
	Ignore  *ignore.Matcher
	Ledger  Ledger // optional
	Workers int    // default 1
	Policy  history.Policy
	Strip   []string // source path segments to drop, default manifest.DefaultStripSegments
	Logger  *slog.Logger
}

type Processor struct {
	opts   Options
	logger *slog.Logger
}

func New(opts Options) *Processor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Strip == nil {
		opts.Strip = manifest.DefaultStripSegments
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{opts: opts, logger: logger}
}

type status int

const (
	statusFailed status = iota
	statusSkipped
	statusUnchanged
	statusWritten
)

// job is one conceptual source file and all pages generated from it.
type job struct {
	source   string
	relative string
	outputs  []string
}

type result struct {
	stamp   annotate.Stamp
	origin  meta.Origin
	commit  *history.Commit
	outputs []status
}

// Process annotates every conceptual page listed in the manifest below
// outputDir. Per-file failures are logged and counted, never returned; the
// only errors are context cancellation and ledger setup.
func (p *Processor) Process(ctx context.Context, m *manifest.Manifest, outputDir string) (Summary, error) {
	jobs := group(m.Targets(outputDir, p.opts.Strip))

	// 1. Ledger run
	var run *meta.Run
	if p.opts.Ledger != nil {
		var err error
		run, err = p.opts.Ledger.StartRun(ctx, p.opts.Start, m.SourceBasePath)
		if err != nil {
			return Summary{}, fmt.Errorf("start ledger run: %w", err)
		}
	}

	// 2. Resolve and write, bounded by workers
	results := make([]result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i := range jobs {
		g.Go(func() error {
			res, err := p.processJob(gctx, jobs[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	// 3. Count and record in manifest order
	var sum Summary
	for i, j := range jobs {
		res := results[i]
		for k, out := range j.outputs {
			sum.Total++
			st := res.outputs[k]
			switch st {
			case statusSkipped:
				sum.Skipped++
				continue
			case statusFailed:
				sum.Failed++
				continue
			case statusUnchanged:
				sum.Unchanged++
			case statusWritten:
				if res.origin == meta.OriginHistory {
					sum.FromHistory++
				} else {
					sum.FromFilesystem++
				}
			}
			if run != nil {
				p.record(ctx, run.ID, j, out, res)
			}
		}
	}

	if run != nil {
		if err := p.opts.Ledger.FinishRun(ctx, run.ID, sum); err != nil {
			p.logger.Warn("ledger finish failed", "run", run.ID, "error", err)
		}
	}

	p.logger.Info(fmt.Sprintf("added modification date to %d conceptual articles", sum.Annotated()),
		"total", sum.Total,
		"from_history", sum.FromHistory,
		"from_filesystem", sum.FromFilesystem,
		"unchanged", sum.Unchanged,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
	)
	return sum, nil
}

func (p *Processor) processJob(ctx context.Context, j job) (result, error) {
	res := result{outputs: make([]status, len(j.outputs))}

	if p.opts.Ignore.Matches(j.relative) {
		p.logger.Debug("ignored", "source", j.relative)
		for k := range res.outputs {
			res.outputs[k] = statusSkipped
		}
		return res, nil
	}

	// 1. History, else file time
	commit, err := p.resolve(ctx, j.source)
	switch {
	case err == nil:
		res.commit = commit
		res.origin = meta.OriginHistory
		res.stamp = annotate.Stamp{When: commit.When, Author: commit.AuthorName}
	case ctx.Err() != nil:
		return res, ctx.Err()
	default:
		level := slog.LevelWarn
		if !IsFallback(err) {
			level = slog.LevelError
		}
		p.logger.Log(ctx, level, "using file modification time", "source", j.source, "reason", err)
		fi, statErr := os.Stat(filepath.FromSlash(j.source))
		if statErr != nil {
			p.logger.Error("cannot date source file", "source", j.source, "error", statErr)
			return res, nil // all outputs stay statusFailed
		}
		res.origin = meta.OriginFilesystem
		res.stamp = annotate.Stamp{When: fi.ModTime().UTC()}
	}

	// 2. Every page generated from the source
	for k, out := range j.outputs {
		ok, err := p.opts.Writer.Write(out, res.stamp)
		switch {
		case err != nil:
			p.logger.Error("annotation failed", "output", out, "error", err)
			res.outputs[k] = statusFailed
		case ok:
			p.logger.Debug("annotated", "output", out, "origin", res.origin)
			res.outputs[k] = statusWritten
		default:
			res.outputs[k] = statusUnchanged
		}
	}
	return res, nil
}

func (p *Processor) resolve(ctx context.Context, source string) (*history.Commit, error) {
	if p.opts.Accessor == nil || p.opts.Start == "" {
		return nil, gitrepo.ErrRootNotResolvable
	}
	rel, err := gitrepo.RelativePath(p.opts.Root, source)
	if err != nil {
		return nil, err
	}
	return history.Resolve(ctx, p.opts.Accessor, p.opts.Start, rel, history.WithPolicy(p.opts.Policy))
}

func (p *Processor) record(ctx context.Context, runID uint, j job, output string, res result) {
	rec := meta.AnnotationRecord{
		SourcePath: j.source,
		OutputPath: output,
		ModifiedAt: res.stamp.When,
		Author:     res.stamp.Author,
		Origin:     res.origin,
	}
	if res.commit != nil {
		rec.CommitHash = res.commit.ID
		rec.Parents = res.commit.Parents
	}
	if err := p.opts.Ledger.RecordAnnotation(ctx, runID, rec); err != nil {
		p.logger.Warn("ledger record failed", "output", output, "error", err)
	}
}

// group folds targets of the same source into one job, keeping first-seen order.
func group(targets []manifest.Target) []job {
	var jobs []job
	index := map[string]int{}
	for _, t := range targets {
		i, ok := index[t.Source]
		if !ok {
			i = len(jobs)
			index[t.Source] = i
			jobs = append(jobs, job{source: t.Source, relative: t.Relative})
		}
		jobs[i].outputs = append(jobs[i].outputs, t.Output)
	}
	return jobs
}

// IsFallback reports whether err only means "no history for this file".
func IsFallback(err error) bool {
	return errors.Is(err, gitrepo.ErrRootNotResolvable) ||
		errors.Is(err, gitrepo.ErrOutsideRepository) ||
		errors.Is(err, history.ErrPathNotFound) ||
		errors.Is(err, history.ErrStoreCorruption)
}
