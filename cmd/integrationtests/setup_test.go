package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	auction "lot-auction/internal/auctionService"
	"lot-auction/internal/auth"
	"lot-auction/internal/broadcast"
	model "lot-auction/internal/models"
	"lot-auction/internal/repository"
	"lot-auction/internal/server"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// caller is the identity a request is sent with
type caller struct {
	userID string
	role   string
}

var (
	admin    = caller{"admin1", "admin"}
	captainA = caller{"capA", "captain"}
	captainB = caller{"capB", "captain"}
	viewer   = caller{"viewer1", "viewer"}
	nobody   = caller{}
)

// testEnv is an auction server wired to an in-memory registry and a fake clock
type testEnv struct {
	router  *gin.Engine
	repo    *repository.MemoryRepo
	manager *auction.Manager
	events  *broadcast.Broadcaster
	clock   *fakeclock.FakeClock
	rules   auction.Rules
}

// SetupTestEnv initializes the router with a seeded in-memory repository for integration testing.
func SetupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	repo.AddLot(model.Lot{LotID: "lot1", Name: "Virat Kohli", Role: "batsman", BasePrice: 20000})
	repo.AddLot(model.Lot{LotID: "lot2", Name: "Jasprit Bumrah", Role: "bowler", BasePrice: 15000})
	repo.AddOrganization(model.Organization{OrganizationID: "team-a", Name: "Team A", CaptainID: "capA", TotalBudget: 100000})
	repo.AddOrganization(model.Organization{OrganizationID: "team-b", Name: "Team B", CaptainID: "capB", TotalBudget: 100000})

	clk := fakeclock.NewFakeClock(time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC))
	events, err := broadcast.New(clk, 2)
	require.NoError(t, err)

	rules := auction.DefaultRules()
	rules.RetryBackoff = 0
	manager := auction.NewManager(repo, events, clk, rules)

	router := server.SetupRouter(server.Dependencies{
		Service:          manager,
		Events:           events,
		Resolver:         auth.NewHeaderResolver(repo),
		StoreName:        "memory",
		SubscriberBuffer: 16,
	})

	t.Cleanup(func() {
		_ = manager.Shutdown(context.Background())
		events.Close()
	})
	return &testEnv{router: router, repo: repo, manager: manager, events: events, clock: clk, rules: rules}
}

// ExecuteRequestAndParse executes an HTTP request as who and parses the response envelope
func (e *testEnv) ExecuteRequestAndParse(t *testing.T, who caller, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if who.userID != "" {
		req.Header.Set(auth.HeaderUserID, who.userID)
		req.Header.Set(auth.HeaderRole, who.role)
	}
	e.router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}

// data returns the data object of a success envelope
func data(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	d, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", resp)
	return d
}

// tick advances the clock by one countdown period and waits until the
// running session has consumed it
func (e *testEnv) tick(t *testing.T) {
	t.Helper()
	before := e.manager.Current()
	require.NotNil(t, before, "no auction is running")

	e.clock.WaitForWatcherAndIncrement(e.rules.TickPeriod)
	require.Eventually(t, func() bool {
		cur := e.manager.Current()
		return cur == nil || cur.SessionID != before.SessionID || cur.Version > before.Version
	}, 2*time.Second, time.Millisecond)
}

// runOut ticks until the running session has settled
func (e *testEnv) runOut(t *testing.T) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		cur := e.manager.Current()
		if cur == nil {
			return
		}
		if cur.Status != model.StatusActive {
			require.Eventually(t, func() bool { return e.manager.Current() == nil }, 2*time.Second, time.Millisecond)
			return
		}
		e.tick(t)
	}
	t.Fatal("auction never ended")
}
