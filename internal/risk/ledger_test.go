package risk

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLedger(limit float64, killSwitch bool) (*Ledger, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)}
	l := NewLedger(Policy{RiskPerTrade: 0.01, DailyLossLimit: limit, KillSwitch: killSwitch}, WithClock(clock.Now))
	return l, clock
}

func TestLedger_KillSwitchBoundary(t *testing.T) {
	t.Run("exactly at limit trips", func(t *testing.T) {
		l, _ := newTestLedger(0.05, true)
		l.Reserve(0.05)
		assert.Equal(t, -0.05, l.SessionLoss())
		assert.True(t, l.KillSwitchTripped())
	})
	t.Run("just above limit does not", func(t *testing.T) {
		l, _ := newTestLedger(0.05, true)
		l.Reserve(0.0499)
		assert.False(t, l.KillSwitchTripped())
	})
	t.Run("disabled never trips", func(t *testing.T) {
		l, _ := newTestLedger(0.05, false)
		l.Reserve(10)
		assert.False(t, l.KillSwitchTripped())
		assert.True(t, l.AllowTrade(1_000))
	})
}

func TestLedger_ReserveAccumulates(t *testing.T) {
	l, _ := newTestLedger(1, true)
	l.Reserve(0.1)
	l.Reserve(0.2)
	l.Reserve(0.3)
	assert.Equal(t, -0.6, l.SessionLoss(), "decimal arithmetic keeps sums exact")

	// no clamping: reserve past the limit is the caller's responsibility
	l.Reserve(5)
	assert.Equal(t, -5.6, l.SessionLoss())
}

func TestLedger_AllowTrade(t *testing.T) {
	l, _ := newTestLedger(0.05, true)
	assert.True(t, l.AllowTrade(0.05), "landing exactly on the limit is allowed")
	assert.False(t, l.AllowTrade(0.0501))

	l.Reserve(0.03)
	assert.True(t, l.AllowTrade(0.02))
	assert.False(t, l.AllowTrade(0.03))
}

func TestLedger_AbsoluteAmounts(t *testing.T) {
	l, _ := newTestLedger(1, true)
	l.Reserve(-0.2)
	l.RegisterLoss(-0.1)
	assert.InDelta(t, -0.3, l.SessionLoss(), 1e-12)
	l.RegisterProfit(-0.5)
	assert.InDelta(t, 0.2, l.SessionLoss(), 1e-12)
}

func TestLedger_ProfitUntripsKillSwitch(t *testing.T) {
	l, _ := newTestLedger(0.05, true)
	l.RegisterLoss(0.06)
	assert.True(t, l.KillSwitchTripped())
	l.RegisterProfit(0.02)
	assert.False(t, l.KillSwitchTripped())
}

func TestLedger_DayBoundaryReset(t *testing.T) {
	l, clock := newTestLedger(0.05, true)
	l.RegisterLoss(1.0)
	assert.Equal(t, -1.0, l.SessionLoss())
	assert.True(t, l.KillSwitchTripped())

	clock.Advance(time.Hour)
	assert.False(t, l.ResetIfNewDay(), "same UTC day")
	assert.Equal(t, -1.0, l.SessionLoss())

	clock.Advance(2 * time.Hour) // 2024-03-11 01:00 UTC
	assert.True(t, l.ResetIfNewDay())
	assert.Zero(t, l.SessionLoss())
	assert.False(t, l.KillSwitchTripped())

	assert.False(t, l.ResetIfNewDay(), "second call the same day is a no-op")
}

func TestLedger_UsesUTCDate(t *testing.T) {
	// 23:30 in UTC-5 is already the next UTC day.
	loc := time.FixedZone("EST", -5*3600)
	clock := &fakeClock{now: time.Date(2024, 3, 10, 18, 0, 0, 0, loc)}
	l := NewLedger(Policy{DailyLossLimit: 1, KillSwitch: true}, WithClock(clock.Now))
	l.Reserve(0.5)
	clock.Advance(5*time.Hour + 30*time.Minute)
	assert.True(t, l.ResetIfNewDay())
}

func TestLedger_Status(t *testing.T) {
	l, clock := newTestLedger(0.05, true)
	l.Reserve(0.02)
	st := l.Status()
	assert.Equal(t, "2024-03-10", st.SessionDay)
	assert.Equal(t, -0.02, st.SessionLoss)
	assert.Equal(t, 0.03, st.Remaining)
	assert.False(t, st.Tripped)

	clock.Advance(24 * time.Hour)
	st = l.Status()
	assert.Equal(t, "2024-03-11", st.SessionDay)
	assert.Zero(t, st.SessionLoss)
}

func TestLedger_ConcurrentReserves(t *testing.T) {
	l, _ := newTestLedger(1000, true)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Reserve(0.01)
		}()
	}
	wg.Wait()
	assert.Equal(t, -1.0, l.SessionLoss())
}
