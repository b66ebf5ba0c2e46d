// File: cmd/report.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/observability"
	"github.com/xkilldash9x/stepwise/internal/report"
	"github.com/xkilldash9x/stepwise/internal/store"
)

// storeOpener connects to the run history database. Tests swap it for one
// backed by a mock pool.
var storeOpener = func(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*store.Store, func(), error) {
	if cfg.URL == "" {
		return nil, nil, errors.New("database URL is not configured (STEPWISE_DATABASE_URL)")
	}
	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

func newReportCmd() *cobra.Command {
	var (
		batchID    string
		outputPath string
		sheet      string
	)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Rebuilds the result report of a stored batch",
		Long: `Reads the results of a batch from the run history database. Without
--output the results are printed as a table; with it they are written to a
new workbook.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			if sheet == "" {
				sheet = cfg.Report.OutputSheet
			}
			return runReport(cmd.Context(), cfg, batchID, outputPath, sheet, cmd.OutOrStdout())
		},
	}

	reportCmd.Flags().StringVar(&batchID, "batch", "", "id of the batch to report (required)")
	_ = reportCmd.MarkFlagRequired("batch")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "workbook to write; prints a table when unset")
	reportCmd.Flags().StringVar(&sheet, "sheet", "", "sheet name in the workbook (default from report.output_sheet)")
	return reportCmd
}

func runReport(ctx context.Context, cfg *config.Config, batchID, outputPath, sheet string, out io.Writer) error {
	id, err := uuid.Parse(batchID)
	if err != nil {
		return fmt.Errorf("invalid batch id '%s': %w", batchID, err)
	}
	logger := observability.GetLogger().With(zap.String(observability.FieldBatchID, id.String()))

	s, cleanup, err := storeOpener(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := s.Entries(ctx, id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no results stored for batch %s", id)
	}

	if outputPath == "" {
		return printEntries(out, entries)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create report '%s': %w", outputPath, err)
	}
	if err := report.Encode(f, sheet, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("Report written.", zap.String("path", outputPath), zap.Int("entries", len(entries)))
	return nil
}

func printEntries(out io.Writer, entries []report.Entry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBTASK\tTASK\tCONFIGURATION\tRESULT\tCOMMENT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.SubtaskID, e.Task, e.Configuration, e.Result, e.Comment)
	}
	return tw.Flush()
}
