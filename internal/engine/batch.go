// File: internal/engine/batch.go
package engine

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/stepwise/internal/report"
	"github.com/xkilldash9x/stepwise/internal/taskdata"
	"github.com/xkilldash9x/stepwise/internal/workflow"
	"go.uber.org/zap"
)

// Batch drives a list of records through their workflows. Consecutive
// records of the same subtask share one browser session, including after a
// failed run; a new subtask id tears the session down and opens a fresh one.
type Batch struct {
	catalog *workflow.Catalog
	factory SessionFactory
	opts    Options
	tracker *Tracker
	logger  *zap.Logger

	session    Browser
	sessionKey string
	runner     *Runner
	// loaded is set once a run on the session has opened the target URL;
	// runs counts the runs made on the session so far.
	loaded bool
	runs   int
}

// NewBatch creates a batch with its own occurrence tracker.
func NewBatch(catalog *workflow.Catalog, factory SessionFactory, opts Options) *Batch {
	opts = opts.withDefaults()
	return &Batch{
		catalog: catalog,
		factory: factory,
		opts:    opts,
		tracker: NewTracker(),
		logger:  opts.Logger.Named("batch"),
	}
}

// Tracker exposes the batch's occurrence counts.
func (b *Batch) Tracker() *Tracker { return b.tracker }

// Run processes records in order and returns one report entry per record.
// Every record gets an entry, including those left over when ctx is
// cancelled.
func (b *Batch) Run(ctx context.Context, records []taskdata.Record) []report.Entry {
	entries := make([]report.Entry, 0, len(records))
	defer b.closeSession()

	for i := range records {
		if err := ctx.Err(); err != nil {
			b.logger.Warn("Batch interrupted; remaining records skipped.",
				zap.Int("remaining", len(records)-i), zap.Error(err))
			for j := i; j < len(records); j++ {
				e := report.NewEntry(&records[j])
				e.Result = report.ResultSkipped
				e.Comment = "batch interrupted"
				entries = append(entries, e)
			}
			break
		}
		entries = append(entries, b.runRecord(ctx, &records[i]))
	}

	b.logger.Info("Batch finished.", zap.Int("records", len(records)))
	return entries
}

func (b *Batch) runRecord(ctx context.Context, rec *taskdata.Record) report.Entry {
	entry := report.NewEntry(rec)
	log := b.logger.With(recordFields(rec)...)
	key := rec.SubtaskID

	wf, ok := b.catalog.Lookup(key)
	if !ok {
		log.Error(fmt.Sprintf("Subtask ID %s not found in the action configuration.", key),
			zap.Error(ErrConfigurationMissing))
		entry.Result = report.ResultSkipped
		entry.Comment = ErrConfigurationMissing.Error()
		return entry
	}

	occurrence := b.tracker.Observe(key)
	log.Info("Processing record.",
		zap.Int("occurrence", occurrence),
		zap.Strings("columns", rec.UpdatedColumns()),
	)

	if b.session == nil || key != b.sessionKey {
		b.closeSession()
		s, err := b.factory(ctx)
		if err != nil {
			log.Error("Could not start a browser session.", zap.Error(err))
			entry.Result = report.ResultFailed
			entry.Comment = fmt.Sprintf("browser session: %v", err)
			return entry
		}
		b.session, b.sessionKey = s, key
		b.runner = NewRunner(s, b.opts)
		b.loaded, b.runs = false, 0
	}

	res := b.runner.Run(ctx, RunRequest{
		SubtaskID:      key,
		Workflow:       wf,
		Record:         rec,
		Occurrence:     occurrence,
		FirstInSession: !b.loaded,
		Restart:        !b.loaded && b.runs > 0,
	})
	b.runs++
	b.loaded = b.loaded || res.Navigated

	entry.Merge(res.Output)
	switch {
	case res.Err != nil:
		entry.Result = report.ResultFailed
		entry.Comment = res.Err.Error()
	case res.Failed > 0:
		entry.Result = report.ResultSuccess
		entry.Comment = fmt.Sprintf("%d action(s) failed", res.Failed)
	default:
		entry.Result = report.ResultSuccess
	}
	return entry
}

func (b *Batch) closeSession() {
	if b.session == nil {
		return
	}
	if err := b.session.Close(); err != nil {
		b.logger.Warn("Error while closing browser session.", zap.Error(err))
	}
	b.session, b.sessionKey, b.runner = nil, "", nil
	b.loaded, b.runs = false, 0
}
