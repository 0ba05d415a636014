package fund

import (
	"fmt"
	"sync"
	"time"

	"github.com/kurokishi/stock-analysis-id/internal/collector"
	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// Manager owns the persisted holdings and the monthly capital budget.
type Manager struct {
	mu       sync.Mutex
	state    *model.FundState
	filePath string
}

// NewManager creates a Manager, loading or initializing state from disk.
func NewManager(filePath string, monthlyCapital float64) (*Manager, error) {
	state, err := LoadState(filePath)
	if err != nil {
		return nil, fmt.Errorf("load fund state: %w", err)
	}

	// Initialize if fresh state
	if state.MonthlyCapital == 0 {
		state.MonthlyCapital = monthlyCapital
	}

	m := &Manager{state: state, filePath: filePath}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// GetState returns a copy of the current fund state.
func (m *Manager) GetState() model.FundState {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := *m.state
	s.Portfolio = m.portfolio()
	return s
}

// Portfolio returns a copy of the current holdings.
func (m *Manager) Portfolio() model.Portfolio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portfolio()
}

func (m *Manager) portfolio() model.Portfolio {
	holdings := make([]model.Holding, len(m.state.Portfolio.Holdings))
	copy(holdings, m.state.Portfolio.Holdings)
	return model.Portfolio{Holdings: holdings}
}

// Add stores a holding, replacing any existing holding of the same ticker.
func (m *Manager) Add(h model.Holding) error {
	h.Ticker = collector.NormalizeTicker(h.Ticker)
	if h.Ticker == "" {
		return fmt.Errorf("holding ticker is empty: %w", model.ErrInvalidParameter)
	}
	if h.Lots < 1 {
		return fmt.Errorf("holding %s lots %d: %w", h.Ticker, h.Lots, model.ErrInvalidParameter)
	}
	if h.EntryCapital < 0 {
		return fmt.Errorf("holding %s capital %.2f: %w", h.Ticker, h.EntryCapital, model.ErrInvalidParameter)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.draft()
	replaced := false
	for i, existing := range next.Portfolio.Holdings {
		if existing.Ticker == h.Ticker {
			next.Portfolio.Holdings[i] = h
			replaced = true
			break
		}
	}
	if !replaced {
		next.Portfolio.Holdings = append(next.Portfolio.Holdings, h)
	}
	return m.commit(next)
}

// Remove deletes the holding for ticker. removed is false when it was absent.
func (m *Manager) Remove(ticker string) (removed bool, err error) {
	ticker = collector.NormalizeTicker(ticker)

	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.draft()
	holdings := next.Portfolio.Holdings[:0]
	for _, h := range next.Portfolio.Holdings {
		if h.Ticker == ticker {
			removed = true
			continue
		}
		holdings = append(holdings, h)
	}
	if !removed {
		return false, nil
	}
	next.Portfolio.Holdings = holdings
	if err := m.commit(next); err != nil {
		return false, err
	}
	return true, nil
}

// SetMonthlyCapital changes the budget used by monthly allocation runs.
func (m *Manager) SetMonthlyCapital(capital float64) error {
	if !(capital > 0) {
		return fmt.Errorf("monthly capital %.2f: %w", capital, model.ErrInvalidParameter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.draft()
	next.MonthlyCapital = capital
	return m.commit(next)
}

// MarkAllocated records the time of the latest allocation run.
func (m *Manager) MarkAllocated(at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.draft()
	next.LastAllocatedAt = at
	return m.commit(next)
}

// draft returns a copy of the state that can be changed without touching m.state.
func (m *Manager) draft() *model.FundState {
	next := *m.state
	next.Portfolio = m.portfolio()
	return &next
}

// commit persists next and only then makes it the current state.
func (m *Manager) commit(next *model.FundState) error {
	if err := SaveState(m.filePath, next); err != nil {
		return fmt.Errorf("save fund state: %w", err)
	}
	m.state = next
	return nil
}

func (m *Manager) save() error {
	if err := SaveState(m.filePath, m.state); err != nil {
		return fmt.Errorf("save fund state: %w", err)
	}
	return nil
}
