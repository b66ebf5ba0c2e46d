// File: internal/engine/runner.go
package engine

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/stepwise/internal/report"
	"github.com/xkilldash9x/stepwise/internal/taskdata"
	"github.com/xkilldash9x/stepwise/internal/workflow"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RunRequest describes one subtask occurrence.
type RunRequest struct {
	SubtaskID string
	Workflow  *workflow.Workflow
	Record    *taskdata.Record
	// Occurrence is the tracker count for the subtask, 1 on first sight.
	Occurrence int
	// FirstInSession is true until a run has loaded the target URL on the
	// current browser session.
	FirstInSession bool
	// Restart runs from step 1 whatever the occurrence. The batch sets it
	// when an earlier run on the same session never reached the page.
	Restart bool
}

// RunResult is what a run produced.
type RunResult struct {
	Output    Output
	StartStep int
	Executed  int
	Skipped   int
	Failed    int
	// BelowStart counts actions skipped because they precede StartStep.
	BelowStart int
	// Navigated is true once the page is loaded: either this run opened the
	// URL or an earlier run on the session already had.
	Navigated bool
	// Err is set, wrapping ErrRunAborted, when the run ended early.
	Err error
}

// Runner sequences the actions of a subtask on one browser session.
type Runner struct {
	browser Browser
	interp  *Interpreter
	opts    Options
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRunner builds a runner for a session.
func NewRunner(b Browser, opts Options) *Runner {
	opts = opts.withDefaults()
	r := &Runner{
		browser: b,
		interp:  NewInterpreter(b, opts),
		opts:    opts,
		logger:  opts.Logger.Named("runner"),
	}
	if aps := opts.Engine.ActionsPerSecond; aps > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(aps), 1)
	}
	return r
}

// Run executes the workflow for one record. Action failures are counted;
// only navigation failure, cancellation, or a panic end the run early.
func (r *Runner) Run(ctx context.Context, req RunRequest) (res RunResult) {
	res.Output = Output{}
	log := r.logger.With(recordFields(req.Record)...)

	defer func() {
		if p := recover(); p != nil {
			log.Error("Error occurred during task execution.", zap.Any("panic", p), zap.Stack("stack"))
			res.Err = fmt.Errorf("%w: panic: %v", ErrRunAborted, p)
		}
	}()

	res.StartStep = 1
	if req.Occurrence > 1 && !req.Restart {
		res.StartStep = req.Workflow.ResumeStep
	}

	if req.FirstInSession {
		if err := r.browser.Navigate(ctx, r.opts.Params.URL); err != nil {
			log.Error("Error occurred during task execution.", zap.Error(err))
			res.Err = fmt.Errorf("%w: %w", ErrRunAborted, err)
			return res
		}
		log.Info("Opened URL.", zap.String("url", r.opts.Params.URL))
		if err := r.opts.Sleep(ctx, r.opts.Browser.PostNavigationWait); err != nil {
			return r.abort(log, res, err)
		}
	}

	res.Navigated = true

	for _, action := range req.Workflow.Actions {
		if err := ctx.Err(); err != nil {
			return r.abort(log, res, err)
		}
		if action.Step() < res.StartStep {
			log.Info(fmt.Sprintf("Skipping step %d for subtask %s. Already executed.", action.Step(), req.SubtaskID))
			res.BelowStart++
			continue
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return r.abort(log, res, err)
			}
		}

		switch o := r.interp.Execute(ctx, action, req.Record, res.Output); o.Status {
		case Succeeded:
			res.Executed++
		case Skipped:
			res.Skipped++
		case Failed:
			res.Failed++
		}
	}
	if err := ctx.Err(); err != nil {
		return r.abort(log, res, err)
	}

	log.Info(report.SuccessMessage(req.Record.TaskName, req.Record.ConfigurationName),
		zap.Int("executed", res.Executed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res
}

func (r *Runner) abort(log *zap.Logger, res RunResult, cause error) RunResult {
	log.Error("Error occurred during task execution.", zap.Error(cause))
	res.Err = fmt.Errorf("%w: %w", ErrRunAborted, cause)
	return res
}
