package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"gestao/internal/export"
	applog "gestao/internal/log"
)

// handleCashFlow serves the month view selected by ?year=&month=,
// defaulting to the current month.
func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	p, err := ParseMonthParams(r.URL.Query(), s.ledger.CurrentPeriod())
	if err != nil {
		writeError(w, r, err)
		return
	}

	if view, ok := s.views.Get(p.Key()); ok {
		writeJSON(w, http.StatusOK, view)
		return
	}

	gen := s.viewGeneration()
	view, err := s.ledger.CashFlow(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.storeView(p.Key(), gen, view)
	writeJSON(w, http.StatusOK, view)
}

// handleExport streams every installment as an xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.ledger.ExportRows(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rows); err != nil {
		writeError(w, r, fmt.Errorf("render export: %w", err))
		return
	}

	applog.FromContext(r.Context()).WithComponent(applog.ComponentExport).
		DebugContext(r.Context(), "Export rendered", "rows", len(rows), "bytes", buf.Len())

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
