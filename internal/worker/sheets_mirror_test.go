package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gestao/internal/amqp"
	"gestao/internal/core"
)

type fakeSource struct {
	rows []core.ExportRow
	err  error
}

func (f *fakeSource) ExportRows(context.Context) ([]core.ExportRow, error) {
	return f.rows, f.err
}

type fakeMirror struct {
	mu       sync.Mutex
	rows     []core.ExportRow
	writes   int
	readErr  error
	writeErr error
}

func (f *fakeMirror) WriteExport(_ context.Context, rows []core.ExportRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.rows = append([]core.ExportRow(nil), rows...)
	return nil
}

func (f *fakeMirror) ReadExport(context.Context) ([]core.ExportRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, f.readErr
}

func (f *fakeMirror) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) WriteExport(ctx context.Context, rows []core.ExportRow) error {
	return m.Called(ctx, rows).Error(0)
}

func (m *mockMirror) ReadExport(ctx context.Context) ([]core.ExportRow, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]core.ExportRow)
	return rows, args.Error(1)
}

func exportRow(number string, cents int64, status core.Status) core.ExportRow {
	return core.ExportRow{
		OrderNumber:   number,
		CustomerName:  "Ana",
		Value:         core.Money{Cents: cents},
		PaymentMethod: "Pix",
		Position:      "1/1",
		DueDate:       core.NewDate(2024, 3, 5),
		Status:        status,
	}
}

func TestSheetsMirror_HandleEventAlwaysWrites(t *testing.T) {
	rows := []core.ExportRow{exportRow("A", 100, core.StatusPending)}
	mirror := &fakeMirror{rows: rows}
	m := NewSheetsMirror(&fakeSource{rows: rows}, mirror)

	err := m.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.OrderCreated, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, mirror.writeCount())
}

func TestSheetsMirror_HandleEventSkipsRead(t *testing.T) {
	rows := []core.ExportRow{
		exportRow("A", 100, core.StatusPending),
		exportRow("B", 250, core.StatusSettled),
	}
	mirror := new(mockMirror)
	mirror.On("WriteExport", mock.Anything, rows).Return(nil).Once()

	m := NewSheetsMirror(&fakeSource{rows: rows}, mirror)
	require.NoError(t, m.HandleEvent(context.Background(), amqp.NewLedgerEvent(amqp.InstallmentSettled, 7)))

	mirror.AssertExpectations(t)
	mirror.AssertNotCalled(t, "ReadExport", mock.Anything)
}

func TestSheetsMirror_ResyncSkipsWhenUnchanged(t *testing.T) {
	src := &fakeSource{rows: []core.ExportRow{exportRow("A", 100, core.StatusPending)}}
	mirror := &fakeMirror{}
	m := NewSheetsMirror(src, mirror)
	ctx := context.Background()

	wrote, err := m.Resync(ctx)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = m.Resync(ctx)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, mirror.writeCount())

	src.rows = []core.ExportRow{exportRow("A", 100, core.StatusSettled)}
	wrote, err = m.Resync(ctx)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, core.StatusSettled, mirror.rows[0].Status)
}

func TestSheetsMirror_ResyncRewritesWhenReadFails(t *testing.T) {
	rows := []core.ExportRow{exportRow("A", 100, core.StatusPending)}
	mirror := &fakeMirror{rows: rows, readErr: errors.New("quota")}
	m := NewSheetsMirror(&fakeSource{rows: rows}, mirror)

	wrote, err := m.Resync(context.Background())
	require.NoError(t, err)
	assert.True(t, wrote)
}

func TestSheetsMirror_Errors(t *testing.T) {
	ctx := context.Background()
	ev := amqp.NewLedgerEvent(amqp.OrderDeleted, 3)

	m := NewSheetsMirror(&fakeSource{err: errors.New("db locked")}, &fakeMirror{})
	err := m.HandleEvent(ctx, ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load export rows")

	m = NewSheetsMirror(&fakeSource{}, &fakeMirror{writeErr: errors.New("403")})
	err = m.HandleEvent(ctx, ev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.deleted")
}

func TestSheetsMirror_RunStopsOnCancel(t *testing.T) {
	mirror := &fakeMirror{}
	m := NewSheetsMirror(&fakeSource{rows: []core.ExportRow{exportRow("A", 1, core.StatusPending)}}, mirror)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Hour) }()

	require.Eventually(t, func() bool { return mirror.writeCount() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSameRows(t *testing.T) {
	a := []core.ExportRow{exportRow("A", 100, core.StatusPending)}
	b := []core.ExportRow{exportRow("A", 100, core.StatusPending)}
	assert.True(t, sameRows(a, b))
	assert.True(t, sameRows(nil, []core.ExportRow{}))

	b[0].Value = core.Money{Cents: 101}
	assert.False(t, sameRows(a, b))
	assert.False(t, sameRows(a, nil))
}
