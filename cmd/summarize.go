// File: cmd/summarize.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/stepwise/internal/report"
	"github.com/xkilldash9x/stepwise/internal/taskdata"
)

func newSummarizeCmd() *cobra.Command {
	var (
		logFile string
		batchID string
		follow  bool
	)
	summarizeCmd := &cobra.Command{
		Use:   "summarize",
		Short: "Builds the functional summary of a run from its JSON log",
		Long: `Groups the warnings, errors and success lines of a run's JSON log by the
task records of the input workbook. Only the lines of one batch are used,
the last one unless --batch names another. With --follow, streams new
warnings and errors as they are appended to the log instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			if logFile == "" {
				logFile = cfg.Logger.LogFile
			}
			if follow {
				return followLog(cmd.Context(), logFile, cmd.OutOrStdout())
			}

			rc := cfg.Run
			if rc.Input == "" {
				return fmt.Errorf("missing required flags: [--input]")
			}
			if rc.Sheet == "" {
				rc.Sheet = cfg.Report.InputSheet
			}
			if rc.Summary == "" {
				rc.Summary = cfg.Report.SummaryFile
			}
			records, err := taskdata.ReadSheet(rc.Input, rc.Sheet)
			if err != nil {
				return err
			}
			if err := writeSummary(logFile, rc.Summary, batchID, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Summary of %d records written to %s\n", len(records), rc.Summary)
			return nil
		},
	}

	f := summarizeCmd.Flags()
	f.StringP("input", "i", "", "task records workbook (.xlsx)")
	f.StringP("sheet", "s", "", "sheet holding the task records (default from report.input_sheet)")
	f.StringP("output", "o", "", "summary file (default from report.summary_file)")
	f.StringVar(&logFile, "log", "", "JSON log to read (default from logger.log_file)")
	f.StringVar(&batchID, "batch", "", "batch id to summarize (default is the last batch in the log)")
	f.BoolVarP(&follow, "follow", "f", false, "stream new warnings and errors until interrupted")
	bindFlag(summarizeCmd, "input", "run.input")
	bindFlag(summarizeCmd, "sheet", "run.sheet")
	bindFlag(summarizeCmd, "output", "run.summary")
	return summarizeCmd
}

// followLog prints every notable line appended to path until ctx is done.
func followLog(ctx context.Context, path string, out io.Writer) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail log file: %w", err)
	}
	defer t.Cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				continue
			}
			if l, ok := report.ParseLogLine([]byte(line.Text)); ok && l.Notable() {
				fmt.Fprintln(out, l.String())
			}
		}
	}
}
