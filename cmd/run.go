// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/stepwise/internal/browser"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/engine"
	"github.com/xkilldash9x/stepwise/internal/observability"
	"github.com/xkilldash9x/stepwise/internal/report"
	"github.com/xkilldash9x/stepwise/internal/store"
	"github.com/xkilldash9x/stepwise/internal/taskdata"
	"github.com/xkilldash9x/stepwise/internal/workflow"
)

// finalizeTimeout bounds report writing and persistence after the batch,
// which run even when the batch itself was interrupted.
const finalizeTimeout = 2 * time.Minute

// sessionOpener is replaced in tests.
var sessionOpener = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (engine.Browser, error) {
	s, err := browser.NewSession(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs every task record through its configured workflow",
		Long: `Reads task records from a spreadsheet, replays the workflow configured
for each record's subtask against the target UI, and writes a result report
and a functional summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}

	f := runCmd.Flags()
	f.StringP("input", "i", "", "task records workbook (.xlsx)")
	f.StringP("sheet", "s", "", "sheet holding the task records (default from report.input_sheet)")
	f.StringP("actions", "a", "", "workflow catalog (.yaml)")
	f.StringP("output", "o", "", "result workbook (default is the input workbook)")
	f.String("summary", "", "functional summary file (default from report.summary_file)")
	f.StringP("username", "u", "", "login user name")
	f.StringP("password", "p", "", "login password")
	f.String("url", "", "URL of the target application")
	for _, name := range []string{"input", "sheet", "actions", "output", "summary", "username", "password", "url"} {
		bindFlag(runCmd, name, "run."+name)
	}
	return runCmd
}

// runBatch is the body of the run command.
func runBatch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	rc := cfg.Run
	var missing []string
	for _, req := range [][2]string{{"input", rc.Input}, {"actions", rc.Actions}, {"url", rc.URL}} {
		if req[1] == "" {
			missing = append(missing, "--"+req[0])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required flags: %v", missing)
	}
	if rc.Sheet == "" {
		rc.Sheet = cfg.Report.InputSheet
	}
	if rc.Output == "" {
		rc.Output = rc.Input
	}
	if rc.Summary == "" {
		rc.Summary = cfg.Report.SummaryFile
	}
	if sameFile(rc.Output, rc.Input) && rc.Sheet == cfg.Report.OutputSheet {
		return fmt.Errorf("result sheet '%s' would overwrite the task records in '%s'; set --output or report.output_sheet", rc.Sheet, rc.Input)
	}

	batchID := uuid.New()
	logger := observability.GetLogger().With(zap.String(observability.FieldBatchID, batchID.String()))

	records, err := taskdata.ReadSheet(rc.Input, rc.Sheet)
	if err != nil {
		return err
	}
	catalog, err := workflow.LoadFile(rc.Actions, cfg.Engine.DefaultResumeStep)
	if err != nil {
		return err
	}
	logger.Info("Starting batch.",
		zap.Int("records", len(records)),
		zap.Int("workflows", catalog.Len()),
		zap.String("input", rc.Input),
	)

	opts := engine.Options{
		Engine:  cfg.Engine,
		Browser: cfg.Browser,
		Params:  engine.Params{Username: rc.Username, Password: rc.Password, URL: rc.URL},
		Logger:  logger,
	}
	factory := func(ctx context.Context) (engine.Browser, error) {
		return sessionOpener(ctx, cfg.Browser, logger)
	}

	started := time.Now()
	entries := engine.NewBatch(catalog, factory, opts).Run(ctx, records)
	finished := time.Now()

	// The batch context may already be cancelled; results are still saved.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(fctx)
	g.Go(func() error {
		if err := report.WriteWorkbook(rc.Output, cfg.Report.OutputSheet, entries); err != nil {
			return err
		}
		logger.Info("Report written.", zap.String("path", rc.Output), zap.String("sheet", cfg.Report.OutputSheet))
		return nil
	})
	if cfg.Database.URL != "" {
		g.Go(func() error {
			return persistBatch(gctx, cfg.Database, logger, &store.Batch{
				ID:         batchID,
				InputFile:  rc.Input,
				StartedAt:  started,
				FinishedAt: finished,
				Entries:    entries,
			})
		})
	}
	finalizeErr := g.Wait()

	if err := writeSummary(cfg.Logger.LogFile, rc.Summary, batchID.String(), records); err != nil {
		logger.Warn("Could not write the functional summary.", zap.Error(err))
	}

	printTotals(out, batchID, entries)
	if finalizeErr != nil {
		return finalizeErr
	}
	return ctx.Err()
}

func persistBatch(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger, b *store.Batch) error {
	s, cleanup, err := storeOpener(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.SaveBatch(ctx, b)
}

// writeSummary builds the functional summary from the lines one batch wrote
// to the JSON log. An empty batchID selects the last batch in the log.
func writeSummary(logFile, summaryFile, batchID string, records []taskdata.Record) error {
	if logFile == "" {
		return errors.New("logger.log_file is not set")
	}
	observability.Sync()

	lf, err := os.Open(logFile)
	if err != nil {
		return fmt.Errorf("failed to open log '%s': %w", logFile, err)
	}
	defer lf.Close()
	lines, err := report.ReadLog(lf)
	if err != nil {
		return err
	}
	lines = report.ForBatch(lines, batchID)

	if dir := filepath.Dir(summaryFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}
	sf, err := os.Create(summaryFile)
	if err != nil {
		return fmt.Errorf("failed to create summary '%s': %w", summaryFile, err)
	}
	if err := report.Summarize(sf, report.TargetsFromRecords(records), lines); err != nil {
		sf.Close()
		return err
	}
	return sf.Close()
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func printTotals(out io.Writer, batchID uuid.UUID, entries []report.Entry) {
	counts := map[string]int{}
	for _, e := range entries {
		counts[e.Result]++
	}
	fmt.Fprintf(out, "Batch %s: %d records, %d succeeded, %d failed, %d skipped\n",
		batchID, len(entries),
		counts[report.ResultSuccess], counts[report.ResultFailed], counts[report.ResultSkipped])
}
