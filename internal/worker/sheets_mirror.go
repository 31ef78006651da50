package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gestao/internal/amqp"
	"gestao/internal/core"
	"gestao/internal/sheets"
)

// ExportSource produces the current export listing from storage.
type ExportSource interface {
	ExportRows(ctx context.Context) ([]core.ExportRow, error)
}

// SheetsMirror keeps a spreadsheet copy of the installment export in step
// with storage. Every write replaces the whole sheet.
type SheetsMirror struct {
	source ExportSource
	mirror sheets.ExportMirror

	// serializes writes so concurrent triggers never interleave clear and update
	mu sync.Mutex
}

func NewSheetsMirror(source ExportSource, mirror sheets.ExportMirror) *SheetsMirror {
	return &SheetsMirror{source: source, mirror: mirror}
}

// HandleEvent processes a single ledger event from AMQP by rewriting the sheet.
func (m *SheetsMirror) HandleEvent(ctx context.Context, ev amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", ev.ID,
		"type", ev.Type,
		"entity_id", ev.EntityID)

	if _, err := m.sync(ctx, true); err != nil {
		return fmt.Errorf("mirror after %s: %w", ev.Type, err)
	}
	return nil
}

// Resync rewrites the sheet only when it differs from storage. It is the
// backup path for events lost while the worker was down.
func (m *SheetsMirror) Resync(ctx context.Context) (bool, error) {
	return m.sync(ctx, false)
}

// Run resyncs once at startup and then every interval until ctx is done.
func (m *SheetsMirror) Run(ctx context.Context, interval time.Duration) error {
	if _, err := m.Resync(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup resync failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Resync(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic resync failed", "error", err)
			}
		}
	}
}

func (m *SheetsMirror) sync(ctx context.Context, force bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.source.ExportRows(ctx)
	if err != nil {
		return false, fmt.Errorf("load export rows: %w", err)
	}

	if !force {
		current, err := m.mirror.ReadExport(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Failed to read sheet, rewriting", "error", err)
		} else if sameRows(current, rows) {
			slog.DebugContext(ctx, "Sheet already up to date", "rows", len(rows))
			return false, nil
		}
	}

	if err := m.mirror.WriteExport(ctx, rows); err != nil {
		return false, fmt.Errorf("write sheet: %w", err)
	}

	slog.InfoContext(ctx, "Sheet mirrored", "rows", len(rows), "forced", force)
	return true, nil
}

func sameRows(a, b []core.ExportRow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x.OrderNumber != y.OrderNumber ||
			x.CustomerName != y.CustomerName ||
			x.Value != y.Value ||
			x.PaymentMethod != y.PaymentMethod ||
			x.Position != y.Position ||
			!x.DueDate.Equal(y.DueDate.Time) ||
			x.Status != y.Status {
			return false
		}
	}
	return true
}
