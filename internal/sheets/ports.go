package sheets

import (
	"context"

	"gestao/internal/core"
)

// Ports for outbound adapters.
type (
	// ExportWriter replaces the mirrored installment listing with rows.
	ExportWriter interface {
		WriteExport(ctx context.Context, rows []core.ExportRow) error
	}

	// ExportReader returns the listing currently held by the mirror.
	ExportReader interface {
		ReadExport(ctx context.Context) ([]core.ExportRow, error)
	}

	ExportMirror interface {
		ExportWriter
		ExportReader
	}
)
