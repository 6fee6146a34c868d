package auction

import (
	"sync"
	"testing"
	"time"

	"lot-auction/internal/models"
	"lot-auction/internal/repository"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	name    string
	payload any
}

// recordingPublisher keeps every published event in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(name string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{name: name, payload: payload})
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

func (p *recordingPublisher) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.name == name {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) last(name string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].name == name {
			return p.events[i].payload, true
		}
	}
	return nil, false
}

func testRules() Rules {
	rules := DefaultRules()
	rules.SettlementRetries = 1
	rules.RetryBackoff = 0
	return rules
}

var testStart = time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)

func seedRepo() *repository.MemoryRepo {
	repo := repository.NewMemoryRepo()
	repo.AddLot(models.Lot{LotID: "lot1", Name: "Virat Kohli", Role: "Batsman", BasePrice: 20000})
	repo.AddLot(models.Lot{LotID: "lot2", Name: "Jasprit Bumrah", Role: "Bowler", BasePrice: 15000})
	repo.AddOrganization(models.Organization{OrganizationID: "orgA", Name: "Team A", CaptainID: "capA", TotalBudget: 100000})
	repo.AddOrganization(models.Organization{OrganizationID: "orgB", Name: "Team B", CaptainID: "capB", TotalBudget: 100000})
	return repo
}

func newActiveSession(t *testing.T, duration int) *Session {
	t.Helper()
	s := newSession("s1", models.Lot{LotID: "lot1", Name: "Virat Kohli", BasePrice: 20000}, duration, testStart)
	snap := s.activate()
	require.Equal(t, models.StatusActive, snap.Status)
	return s
}

func bidder(id string, budget int64) models.Organization {
	return models.Organization{OrganizationID: id, Name: "Team " + id, TotalBudget: budget, RemainingBudget: budget}
}

// step advances the fake clock by one tick and waits until the current
// session has consumed it or left the slot.
func step(t *testing.T, clk *fakeclock.FakeClock, m *Manager) {
	t.Helper()
	cur := m.Current()
	require.NotNil(t, cur, "no session holds the slot")
	before := cur.Version

	clk.WaitForWatcherAndIncrement(m.rules.TickPeriod)
	require.Eventually(t, func() bool {
		now := m.Current()
		return now == nil || now.SessionID != cur.SessionID || now.Version > before
	}, time.Second, time.Millisecond)
}

// runOut ticks the current session until it leaves the slot
func runOut(t *testing.T, clk *fakeclock.FakeClock, m *Manager) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		cur := m.Current()
		if cur == nil {
			return
		}
		if cur.Status != models.StatusActive {
			require.Eventually(t, func() bool { return m.Current() == nil }, time.Second, time.Millisecond)
			return
		}
		step(t, clk, m)
	}
	t.Fatal("session never ran out")
}
