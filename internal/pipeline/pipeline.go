// Package pipeline runs one statement end to end: parse, detect recurring
// payments, optionally let a classifier refine them, then check the result
// against payments the user already tracks.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/recurring-detector/internal/classifier"
	"github.com/insightdelivered/recurring-detector/internal/detector"
	"github.com/insightdelivered/recurring-detector/internal/duplicate"
	"github.com/insightdelivered/recurring-detector/internal/logger"
	"github.com/insightdelivered/recurring-detector/internal/models"
	"github.com/insightdelivered/recurring-detector/internal/parser"
)

// DefaultMinConfidence is the score below which patterns are not reported.
const DefaultMinConfidence = 0.5

// Options configures a Pipeline. Zero values take the package defaults.
type Options struct {
	Logger   *log.Logger
	Registry *parser.Registry

	MinTransactions    int
	MinConfidence      *float64
	DuplicateThreshold float64

	Classifier        classifier.Classifier // optional
	ClassifierTimeout time.Duration
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	logger            *log.Logger
	registry          *parser.Registry
	detector          detector.Detector
	minConfidence     float64
	duplicates        duplicate.Detector
	classifier        classifier.Classifier
	classifierTimeout time.Duration
}

// New builds a pipeline from opts.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		logger:            opts.Logger,
		registry:          opts.Registry,
		detector:          detector.Detector{MinTransactions: opts.MinTransactions},
		minConfidence:     DefaultMinConfidence,
		duplicates:        duplicate.Detector{Threshold: opts.DuplicateThreshold},
		classifier:        opts.Classifier,
		classifierTimeout: opts.ClassifierTimeout,
	}
	if p.logger == nil {
		p.logger = logger.Discard()
	}
	if p.registry == nil {
		p.registry = parser.DefaultRegistry()
	}
	if opts.MinConfidence != nil {
		p.minConfidence = *opts.MinConfidence
	}
	if p.classifierTimeout <= 0 {
		p.classifierTimeout = classifier.DefaultTimeout
	}
	return p
}

// Registry returns the bank profiles the pipeline parses with.
func (p *Pipeline) Registry() *parser.Registry { return p.registry }

// Input is one statement to process.
type Input struct {
	Data     []byte
	Filename string
	Profile  string // bank profile name, detected when empty
	Existing []models.ExistingPayment

	// MinConfidence overrides the pipeline setting for this run.
	MinConfidence *float64
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	Statement  *models.StatementData
	Patterns   []models.DetectedPattern
	Duplicates []models.DuplicateMatch
}

// Run processes in. Parse failures are returned as the typed errors of the
// models package. A failing classifier never fails the run.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	l := p.logger.With("run", runID, "file", in.Filename)

	src := parser.Source{Data: in.Data, Filename: in.Filename}
	if in.Profile != "" {
		profile, ok := p.registry.Get(in.Profile)
		if !ok {
			return nil, fmt.Errorf("unknown bank profile %q", in.Profile)
		}
		src.Profile = profile
	}

	format, err := parser.DetectFormat(in.Filename, in.Data)
	if err != nil {
		return nil, err
	}
	prs, err := parser.New(format, l, p.registry)
	if err != nil {
		return nil, err
	}
	stmt, err := prs.Parse(src)
	if err != nil {
		return nil, err
	}
	l.Info("parsed statement", "format", format, "bank", stmt.BankName, "transactions", len(stmt.Transactions))

	patterns := p.detector.Detect(stmt.Transactions)
	patterns = p.refine(ctx, l, patterns)

	minConfidence := p.minConfidence
	if in.MinConfidence != nil {
		minConfidence = *in.MinConfidence
	}
	patterns = detector.Rank(patterns, minConfidence)

	dups := p.duplicates.FindDuplicates(patterns, in.Existing)
	l.Info("detected recurring payments", "patterns", len(patterns), "duplicates", len(dups))

	return &Result{
		RunID:      runID,
		Statement:  stmt,
		Patterns:   patterns,
		Duplicates: dups,
	}, nil
}

// refine applies classifier corrections, keeping the rule-based patterns
// when the classifier fails or times out.
func (p *Pipeline) refine(ctx context.Context, l *log.Logger, patterns []models.DetectedPattern) []models.DetectedPattern {
	if p.classifier == nil || len(patterns) == 0 {
		return patterns
	}
	ctx, cancel := context.WithTimeout(ctx, p.classifierTimeout)
	defer cancel()

	summary := detector.Summarize(patterns)
	// buffered so a classifier that ignores ctx can still finish and exit
	done := make(chan classifyResult, 1)
	go func() {
		done <- classify(ctx, p.classifier, summary)
	}()

	var res classifyResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil {
		l.Warn("classifier failed, keeping rule-based results", "err", res.err)
		return patterns
	}
	l.Debug("applying classifier corrections", "corrections", len(res.corrections))
	return detector.ApplyCorrections(patterns, res.corrections)
}

type classifyResult struct {
	corrections []classifier.Correction
	err         error
}

// classify calls c, turning a panic into an error.
func classify(ctx context.Context, c classifier.Classifier, summary string) (res classifyResult) {
	defer func() {
		if r := recover(); r != nil {
			res = classifyResult{err: fmt.Errorf("classifier panicked: %v", r)}
		}
	}()
	res.corrections, res.err = c.Classify(ctx, summary)
	return res
}

// BatchResult holds the outcome of one input of RunBatch.
type BatchResult struct {
	Input  string
	Result *Result
	Err    error
}

// RunBatch runs inputs concurrently on at most workers goroutines. Results
// are returned in input order and one failing input does not stop the
// others.
func (p *Pipeline) RunBatch(ctx context.Context, inputs []Input, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]BatchResult, len(inputs))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, in := range inputs {
		g.Go(func() error {
			res, err := p.Run(ctx, in)
			results[i] = BatchResult{Input: in.Filename, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
