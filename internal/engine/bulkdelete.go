// File: internal/engine/bulkdelete.go
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/stepwise/internal/browser"
	"github.com/xkilldash9x/stepwise/internal/config"
	"github.com/xkilldash9x/stepwise/internal/workflow"
	"go.uber.org/zap"
)

// DeleteSpec holds the locators and waits of one bulk delete.
type DeleteSpec struct {
	Rows     browser.Locator
	Primary  browser.Locator
	Fallback browser.Locator
	Confirm  browser.Locator

	DeleteTimeout    time.Duration
	ConfirmTimeout   time.Duration
	AfterDeleteWait  time.Duration
	AfterConfirmWait time.Duration
}

// BulkDeleter clears a listing table one row at a time. The table
// re-indexes after every deletion, so each attempt resolves the delete
// control afresh instead of holding on to row handles.
type BulkDeleter struct {
	defaults config.BulkDeleteConfig
	logger   *zap.Logger
	sleep    SleepFunc
}

// NewBulkDeleter returns a deleter using defaults for anything an action
// does not override.
func NewBulkDeleter(defaults config.BulkDeleteConfig, logger *zap.Logger, sleep SleepFunc) *BulkDeleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return &BulkDeleter{defaults: defaults, logger: logger.Named("bulk_delete"), sleep: sleep}
}

// SpecFor merges an action's overrides onto the configured defaults.
func (d *BulkDeleter) SpecFor(a *workflow.DeleteRecords) DeleteSpec {
	pick := func(override, fallback string) string {
		if override != "" {
			return override
		}
		return fallback
	}
	pickDur := func(override, fallback time.Duration) time.Duration {
		if override > 0 {
			return override
		}
		return fallback
	}
	spec := DeleteSpec{
		Rows:             browser.CSS(d.defaults.RowsSelector),
		Primary:          browser.CSS(d.defaults.PrimarySelector),
		Fallback:         browser.CSS(d.defaults.FallbackSelector),
		Confirm:          browser.CSS(d.defaults.ConfirmSelector),
		DeleteTimeout:    d.defaults.DeleteTimeout,
		ConfirmTimeout:   d.defaults.ConfirmTimeout,
		AfterDeleteWait:  d.defaults.AfterDeleteWait,
		AfterConfirmWait: d.defaults.AfterConfirmWait,
	}
	if a == nil {
		return spec
	}
	spec.Rows.Value = pick(a.RowsSelector, spec.Rows.Value)
	spec.Primary.Value = pick(a.PrimarySelector, spec.Primary.Value)
	spec.Fallback.Value = pick(a.FallbackSelector, spec.Fallback.Value)
	spec.Confirm.Value = pick(a.ConfirmSelector, spec.Confirm.Value)
	spec.DeleteTimeout = pickDur(a.DeleteTimeout, spec.DeleteTimeout)
	spec.ConfirmTimeout = pickDur(a.ConfirmTimeout, spec.ConfirmTimeout)
	return spec
}

// Run deletes up to N-1 rows of a table that had N rows when it started,
// leaving the last row in place. A row whose delete or confirm control
// cannot be clicked is logged and skipped. It returns the number of
// confirmed deletions and the number of rows attempted.
func (d *BulkDeleter) Run(ctx context.Context, b Browser, spec DeleteSpec) (deleted, attempted int) {
	rows, err := b.CountElements(ctx, spec.Rows)
	if err != nil {
		d.logger.Error("Could not count table rows.", zap.String("rows", spec.Rows.Value), zap.Error(err))
		return 0, 0
	}
	total := rows - 1
	if total < 1 {
		d.logger.Info("No records to delete.", zap.Int("rows", rows))
		return 0, 0
	}

	for i := 1; i <= total; i++ {
		if ctx.Err() != nil {
			d.logger.Warn("Bulk delete interrupted.", zap.Error(ctx.Err()))
			break
		}
		attempted++
		log := d.logger.With(zap.Int("row", i))

		if err := d.clickDelete(ctx, b, spec, log); err != nil {
			log.Error("Could not click the delete control; row skipped.", zap.Error(err))
			continue
		}
		if err := d.sleep(ctx, spec.AfterDeleteWait); err != nil {
			continue
		}

		confirm, err := b.WaitClickable(ctx, spec.Confirm, spec.ConfirmTimeout)
		if err == nil {
			err = b.Click(ctx, confirm)
		}
		if err != nil {
			log.Error("Could not confirm the deletion; row skipped.", zap.Error(err))
			continue
		}
		if err := d.sleep(ctx, spec.AfterConfirmWait); err != nil {
			continue
		}

		deleted++
		log.Info(fmt.Sprintf("Deleted record %d/%d", deleted, total))
	}

	d.logger.Info(fmt.Sprintf("Total records deleted: %d/%d", deleted, total))
	return deleted, attempted
}

// clickDelete clicks the delete control in the primary column and falls back
// to the alternate column when that fails.
func (d *BulkDeleter) clickDelete(ctx context.Context, b Browser, spec DeleteSpec, log *zap.Logger) error {
	err := d.waitAndClick(ctx, b, spec.Primary, spec.DeleteTimeout)
	if err == nil || spec.Fallback.Value == "" || ctx.Err() != nil {
		return err
	}
	log.Warn("Primary delete control unavailable, trying the alternate column.", zap.Error(err))
	return d.waitAndClick(ctx, b, spec.Fallback, spec.DeleteTimeout)
}

func (d *BulkDeleter) waitAndClick(ctx context.Context, b Browser, loc browser.Locator, timeout time.Duration) error {
	el, err := b.WaitClickable(ctx, loc, timeout)
	if err != nil {
		return err
	}
	return b.Click(ctx, el)
}
