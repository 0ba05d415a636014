package fund

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurokishi/stock-analysis-id/internal/model"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "portfolio.json")
	m, err := NewManager(path, 5_000_000)
	require.NoError(t, err)
	return m, path
}

func TestNewManager_FreshState(t *testing.T) {
	m, path := newManager(t)
	state := m.GetState()
	assert.Equal(t, 5_000_000.0, state.MonthlyCapital)
	assert.Empty(t, state.Portfolio.Holdings)
	assert.False(t, state.UpdatedAt.IsZero())

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestManager_AddReplacesAndPersists(t *testing.T) {
	m, path := newManager(t)
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, m.Add(model.Holding{Ticker: "bbca", Lots: 2, EntryDate: entry, EntryCapital: 1_900_000}))
	require.NoError(t, m.Add(model.Holding{Ticker: "TLKM", Lots: 10}))
	require.NoError(t, m.Add(model.Holding{Ticker: "BBCA.JK", Lots: 5, EntryDate: entry}))

	p := m.Portfolio()
	require.Len(t, p.Holdings, 2)
	assert.Equal(t, "BBCA.JK", p.Holdings[0].Ticker)
	assert.Equal(t, 5, p.Holdings[0].Lots)
	assert.True(t, p.Held("bbca.jk"))

	// A second manager on the same file sees the holdings.
	reloaded, err := NewManager(path, 1)
	require.NoError(t, err)
	assert.Equal(t, p.Holdings, reloaded.Portfolio().Holdings)
	assert.Equal(t, 5_000_000.0, reloaded.GetState().MonthlyCapital)
}

func TestManager_AddRejectsInvalid(t *testing.T) {
	m, _ := newManager(t)
	for _, h := range []model.Holding{
		{Ticker: "", Lots: 1},
		{Ticker: "BBCA", Lots: 0},
		{Ticker: "BBCA", Lots: 1, EntryCapital: -1},
	} {
		assert.True(t, errors.Is(m.Add(h), model.ErrInvalidParameter), "%+v", h)
	}
	assert.Empty(t, m.Portfolio().Holdings)
}

func TestManager_Remove(t *testing.T) {
	m, _ := newManager(t)
	require.NoError(t, m.Add(model.Holding{Ticker: "ASII", Lots: 1}))
	require.NoError(t, m.Add(model.Holding{Ticker: "UNVR", Lots: 1}))

	removed, err := m.Remove("asii")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"UNVR.JK"}, m.Portfolio().Tickers())

	removed, err = m.Remove("ASII")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestManager_PortfolioIsACopy(t *testing.T) {
	m, _ := newManager(t)
	require.NoError(t, m.Add(model.Holding{Ticker: "BBRI", Lots: 3}))
	p := m.Portfolio()
	p.Holdings[0].Lots = 99
	assert.Equal(t, 3, m.Portfolio().Holdings[0].Lots)
}

func TestManager_MonthlyCapitalAndAllocation(t *testing.T) {
	m, _ := newManager(t)
	assert.True(t, errors.Is(m.SetMonthlyCapital(0), model.ErrInvalidParameter))
	require.NoError(t, m.SetMonthlyCapital(7_500_000))

	at := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, m.MarkAllocated(at))

	state := m.GetState()
	assert.Equal(t, 7_500_000.0, state.MonthlyCapital)
	assert.True(t, at.Equal(state.LastAllocatedAt))
}

func TestLoadState_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := LoadState(path)
	assert.Error(t, err)
	_, err = NewManager(path, 1)
	assert.Error(t, err)
}

func TestManager_FailedSaveKeepsState(t *testing.T) {
	m, _ := newManager(t)
	require.NoError(t, m.Add(model.Holding{Ticker: "BBCA", Lots: 2}))
	before := m.GetState()

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	m.filePath = filepath.Join(blocker, "portfolio.json")

	assert.Error(t, m.Add(model.Holding{Ticker: "TLKM", Lots: 1}))
	assert.Error(t, m.Add(model.Holding{Ticker: "BBCA", Lots: 9}))
	_, err := m.Remove("BBCA")
	assert.Error(t, err)
	assert.Error(t, m.SetMonthlyCapital(9_000_000))
	assert.Error(t, m.MarkAllocated(time.Now()))

	after := m.GetState()
	assert.Equal(t, before.Portfolio.Holdings, after.Portfolio.Holdings)
	assert.Equal(t, before.MonthlyCapital, after.MonthlyCapital)
	assert.True(t, after.LastAllocatedAt.IsZero())
}
