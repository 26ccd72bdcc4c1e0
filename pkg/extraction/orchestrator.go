package extraction

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/llm"
)

// Storer persists one extracted item. Implementations typically embed the
// text and run it through the consolidation engine.
type Storer interface {
	Store(ctx context.Context, item ExtractedItem, sourcePath string) error
}

// StoreFunc adapts a plain function to the Storer interface.
type StoreFunc func(ctx context.Context, item ExtractedItem, sourcePath string) error

// Store implements Storer.
func (f StoreFunc) Store(ctx context.Context, item ExtractedItem, sourcePath string) error {
	return f(ctx, item, sourcePath)
}

// Config holds the orchestrator's tuning knobs.
type Config struct {
	// Enabled gates the whole pipeline. When false, RunAutoMemorize is a no-op.
	Enabled bool

	// MaxTranscriptChars caps the transcript text shown to the model.
	MaxTranscriptChars int

	// ExtractionTimeout bounds each strategy's model call.
	ExtractionTimeout time.Duration
}

// DefaultConfig returns the orchestrator defaults. Extraction ships disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:            false,
		MaxTranscriptChars: 12000,
		ExtractionTimeout:  30 * time.Second,
	}
}

// StrategyResult is the outcome of one extraction strategy.
type StrategyResult struct {
	Strategy string `json:"strategy"`

	// Extracted holds every item the strategy produced, stored or not.
	Extracted []ExtractedItem `json:"extracted,omitempty"`

	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`

	// SkipReason explains a wholesale skip, e.g. "rate_limit" when the
	// budget gate denied the call.
	SkipReason string `json:"skip_reason,omitempty"`

	// Err carries the strategy's extraction failure, if any. Other
	// strategies still settle.
	Err string `json:"error,omitempty"`
}

// AutoMemorizeResult aggregates one auto-memorize run across all strategies.
type AutoMemorizeResult struct {
	SourcePath string           `json:"source_path"`
	Strategies []StrategyResult `json:"strategies"`

	// TotalExtracted counts every item the strategies produced, stored or not.
	TotalExtracted int `json:"total_extracted"`

	// TotalStored counts the items that made it into the store.
	TotalStored int `json:"total_stored"`

	// Duration is the wall-clock time of the whole run.
	Duration time.Duration `json:"duration"`
}

// Orchestrator runs the extraction strategies against a transcript and stores
// what they find.
type Orchestrator struct {
	caller llm.Caller
	gate   llm.BudgetGate
	storer Storer
	cfg    Config
	logger *zap.Logger
}

// NewOrchestrator creates an extraction orchestrator. A nil gate allows all
// calls.
func NewOrchestrator(caller llm.Caller, gate llm.BudgetGate, storer Storer, cfg Config, logger *zap.Logger) *Orchestrator {
	if gate == nil {
		gate = llm.AllowAll{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		caller: caller,
		gate:   gate,
		storer: storer,
		cfg:    cfg,
		logger: logger,
	}
}

// RunAutoMemorize extracts memories from the transcript at path. When
// extraction is disabled it returns (nil, nil) without reading the file or
// calling the model. A transcript read failure fails the run; strategy
// failures do not, each strategy settles independently and reports its own
// error in its result.
func (o *Orchestrator) RunAutoMemorize(ctx context.Context, path string) (*AutoMemorizeResult, error) {
	if !o.cfg.Enabled {
		return nil, nil
	}

	start := time.Now()

	messages, err := ReadTranscript(path)
	if err != nil {
		return nil, err
	}

	transcript := BuildTranscript(messages, o.cfg.MaxTranscriptChars)

	strategies := Strategies()
	results := make([]StrategyResult, len(strategies))

	var wg sync.WaitGroup
	for i, strategy := range strategies {
		wg.Add(1)
		go func(i int, s Strategy) {
			defer wg.Done()
			results[i] = o.runStrategy(ctx, s, transcript, path)
		}(i, strategy)
	}
	wg.Wait()

	run := &AutoMemorizeResult{
		SourcePath: path,
		Strategies: results,
		Duration:   time.Since(start),
	}
	for _, r := range results {
		run.TotalExtracted += len(r.Extracted)
		run.TotalStored += r.Stored
	}

	fields := []zap.Field{
		zap.String("transcript", path),
		zap.Int("extracted", run.TotalExtracted),
		zap.Int("stored", run.TotalStored),
		zap.Duration("duration", run.Duration),
	}
	for _, r := range results {
		fields = append(fields,
			zap.Int(r.Strategy+"_extracted", len(r.Extracted)),
			zap.Int(r.Strategy+"_stored", r.Stored),
		)
		if r.SkipReason != "" {
			fields = append(fields, zap.String(r.Strategy+"_skip_reason", r.SkipReason))
		}
		if r.Err != "" {
			fields = append(fields, zap.String(r.Strategy+"_error", r.Err))
		}
	}

	o.logger.Info("auto-memorize complete", fields...)

	return run, nil
}

// runStrategy executes one strategy end to end: budget check, model call,
// parse, then sequential storage of each item.
func (o *Orchestrator) runStrategy(ctx context.Context, s Strategy, transcript, sourcePath string) StrategyResult {
	result := StrategyResult{Strategy: s.Name}

	if transcript == "" {
		return result
	}

	if !o.gate.CheckBudget() {
		result.SkipReason = "rate_limit"
		return result
	}

	timeout := o.cfg.ExtractionTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ExtractionTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := o.caller.Call(callCtx, s.system, "Transcript:\n"+transcript, llm.TaskConsolidation)
	if err != nil {
		result.Err = err.Error()
		return result
	}

	items := s.parse(response)
	result.Extracted = items

	for _, item := range items {
		if err := o.storer.Store(ctx, item, sourcePath); err != nil {
			o.logger.Warn("storing extracted item failed",
				zap.String("strategy", s.Name),
				zap.Error(err),
			)
			result.Skipped++
			continue
		}
		result.Stored++
	}

	return result
}
