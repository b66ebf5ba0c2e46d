// File: internal/engine/bulkdelete_test.go
package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/stepwise/internal/browser"
	"github.com/xkilldash9x/stepwise/internal/mocks"
	"github.com/xkilldash9x/stepwise/internal/workflow"
)

func TestBulkDeleter_SpecFor(t *testing.T) {
	opts, _, _ := testOptions(t)
	d := NewBulkDeleter(opts.Engine.BulkDelete, nil, nil)

	defaults := d.SpecFor(nil)
	assert.Equal(t, browser.CSS("#ServersTable > table.x1o > tbody > tr"), defaults.Rows)
	assert.Equal(t, 120*time.Second, defaults.DeleteTimeout)
	assert.Equal(t, 10*time.Second, defaults.AfterConfirmWait)

	custom := d.SpecFor(&workflow.DeleteRecords{RowsSelector: "#Grid tr", ConfirmTimeout: 5 * time.Second})
	assert.Equal(t, "#Grid tr", custom.Rows.Value)
	assert.Equal(t, defaults.Primary, custom.Primary)
	assert.Equal(t, 5*time.Second, custom.ConfirmTimeout)
	assert.Equal(t, defaults.DeleteTimeout, custom.DeleteTimeout)
}

func TestBulkDeleter_Run(t *testing.T) {
	errGone := errors.New("not clickable")

	tests := []struct {
		name          string
		rows          int
		countErr      error
		setup         func(b *mocks.MockBrowser, spec DeleteSpec, del, confirm *browser.Element)
		wantDeleted   int
		wantAttempted int
		wantErrorLogs int
	}{
		{
			name: "deletes all but the last row",
			rows: 4,
			setup: func(b *mocks.MockBrowser, spec DeleteSpec, del, confirm *browser.Element) {
				b.On("WaitClickable", mock.Anything, spec.Primary, spec.DeleteTimeout).Return(del, nil)
				b.On("WaitClickable", mock.Anything, spec.Confirm, spec.ConfirmTimeout).Return(confirm, nil)
				b.On("Click", mock.Anything, mock.Anything).Return(nil)
			},
			wantDeleted:   3,
			wantAttempted: 3,
		},
		{
			name: "falls back to the alternate column",
			rows: 2,
			setup: func(b *mocks.MockBrowser, spec DeleteSpec, del, confirm *browser.Element) {
				b.On("WaitClickable", mock.Anything, spec.Primary, spec.DeleteTimeout).Return(nil, errGone)
				b.On("WaitClickable", mock.Anything, spec.Fallback, spec.DeleteTimeout).Return(del, nil)
				b.On("WaitClickable", mock.Anything, spec.Confirm, spec.ConfirmTimeout).Return(confirm, nil)
				b.On("Click", mock.Anything, mock.Anything).Return(nil)
			},
			wantDeleted:   1,
			wantAttempted: 1,
		},
		{
			name: "both columns failing skips the row and continues",
			rows: 3,
			setup: func(b *mocks.MockBrowser, spec DeleteSpec, del, confirm *browser.Element) {
				b.On("WaitClickable", mock.Anything, spec.Primary, spec.DeleteTimeout).Return(nil, errGone).Once()
				b.On("WaitClickable", mock.Anything, spec.Fallback, spec.DeleteTimeout).Return(nil, errGone).Once()
				b.On("WaitClickable", mock.Anything, spec.Primary, spec.DeleteTimeout).Return(del, nil).Once()
				b.On("WaitClickable", mock.Anything, spec.Confirm, spec.ConfirmTimeout).Return(confirm, nil).Once()
				b.On("Click", mock.Anything, mock.Anything).Return(nil)
			},
			wantDeleted:   1,
			wantAttempted: 2,
			wantErrorLogs: 1,
		},
		{
			name: "confirm failure skips the row",
			rows: 2,
			setup: func(b *mocks.MockBrowser, spec DeleteSpec, del, confirm *browser.Element) {
				b.On("WaitClickable", mock.Anything, spec.Primary, spec.DeleteTimeout).Return(del, nil)
				b.On("WaitClickable", mock.Anything, spec.Confirm, spec.ConfirmTimeout).Return(nil, errGone)
				b.On("Click", mock.Anything, del).Return(nil)
			},
			wantDeleted:   0,
			wantAttempted: 1,
			wantErrorLogs: 1,
		},
		{
			name:        "single row is left alone",
			rows:        1,
			setup:       func(*mocks.MockBrowser, DeleteSpec, *browser.Element, *browser.Element) {},
			wantDeleted: 0,
		},
		{
			name:          "empty table",
			rows:          0,
			setup:         func(*mocks.MockBrowser, DeleteSpec, *browser.Element, *browser.Element) {},
			wantDeleted:   0,
			wantAttempted: 0,
		},
		{
			name:          "row count failure",
			countErr:      errors.New("target closed"),
			setup:         func(*mocks.MockBrowser, DeleteSpec, *browser.Element, *browser.Element) {},
			wantErrorLogs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, logs, _ := testOptions(t)
			d := NewBulkDeleter(opts.Engine.BulkDelete, opts.Logger, opts.Sleep)
			spec := d.SpecFor(nil)

			b := new(mocks.MockBrowser)
			b.On("CountElements", mock.Anything, spec.Rows).Return(tt.rows, tt.countErr).Once()
			del := mocks.NewElement(spec.Primary)
			confirm := mocks.NewElement(spec.Confirm)
			tt.setup(b, spec, del, confirm)

			deleted, attempted := d.Run(context.Background(), b, spec)

			assert.Equal(t, tt.wantDeleted, deleted)
			assert.Equal(t, tt.wantAttempted, attempted)
			assert.Equal(t, tt.wantErrorLogs, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
			b.AssertExpectations(t)
		})
	}
}

func TestBulkDeleter_ProgressLogsAndWaits(t *testing.T) {
	opts, logs, clock := testOptions(t)
	d := NewBulkDeleter(opts.Engine.BulkDelete, opts.Logger, opts.Sleep)
	spec := d.SpecFor(nil)

	b := new(mocks.MockBrowser)
	b.On("CountElements", mock.Anything, spec.Rows).Return(3, nil)
	b.On("WaitClickable", mock.Anything, mock.Anything, mock.Anything).Return(mocks.NewElement(spec.Primary), nil)
	b.On("Click", mock.Anything, mock.Anything).Return(nil)

	deleted, _ := d.Run(context.Background(), b, spec)
	assert.Equal(t, 2, deleted)

	assert.Equal(t, 1, logs.FilterMessage("Deleted record 1/2").Len())
	assert.Equal(t, 1, logs.FilterMessage("Deleted record 2/2").Len())
	assert.Equal(t, 1, logs.FilterMessage("Total records deleted: 2/2").Len())
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 5 * time.Second, 10 * time.Second}, clock.Durations())
}

func TestBulkDeleter_StopsOnCancel(t *testing.T) {
	opts, _, _ := testOptions(t)
	d := NewBulkDeleter(opts.Engine.BulkDelete, opts.Logger, opts.Sleep)
	spec := d.SpecFor(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := new(mocks.MockBrowser)
	b.On("CountElements", mock.Anything, spec.Rows).Return(5, nil)

	deleted, attempted := d.Run(ctx, b, spec)
	assert.Zero(t, deleted)
	assert.Zero(t, attempted)
	b.AssertNotCalled(t, "WaitClickable", mock.Anything, mock.Anything, mock.Anything)
}
