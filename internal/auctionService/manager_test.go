package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lot-auction/internal/auctionerrors"
	"lot-auction/internal/broadcast"
	"lot-auction/internal/models"
	"lot-auction/internal/repository"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *repository.MemoryRepo, *recordingPublisher, *fakeclock.FakeClock) {
	t.Helper()
	repo := seedRepo()
	pub := &recordingPublisher{}
	clk := fakeclock.NewFakeClock(testStart)
	m := NewManager(repo, pub, clk, testRules())
	t.Cleanup(func() { _ = m.ResetAll(context.Background()) })
	return m, repo, pub, clk
}

// Tests StartAuction validation
func TestManager_StartAuction(t *testing.T) {
	tests := []struct {
		name          string
		lotID         string
		duration      int
		expectError   bool
		expectedError error
		expectedDur   int
	}{
		{name: "valid_start", lotID: "lot1", duration: 10, expectedDur: 10},
		{name: "default_duration", lotID: "lot1", duration: 0, expectedDur: 30},
		{name: "empty_lotID", lotID: "", duration: 10, expectError: true, expectedError: auctionerrors.ErrValidation},
		{name: "negative_duration", lotID: "lot1", duration: -1, expectError: true, expectedError: auctionerrors.ErrInvalidDuration},
		{name: "unknown_lot", lotID: "nope", duration: 10, expectError: true, expectedError: auctionerrors.ErrLotNotFound},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, repo, pub, _ := newTestManager(t)

			snap, err := m.StartAuction(context.Background(), tc.lotID, tc.duration)

			if tc.expectError {
				require.Error(t, err)
				require.True(t, errors.Is(err, tc.expectedError), "expected error: %v, got: %v", tc.expectedError, err)
				require.Nil(t, m.Current(), "a failed start must release the slot")
				require.Zero(t, pub.count(EventAuctionStarted))
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, snap.SessionID)
			require.Equal(t, models.StatusActive, snap.Status)
			require.Equal(t, tc.expectedDur, snap.Duration)
			require.Equal(t, tc.expectedDur, snap.Remaining)
			require.Equal(t, int64(20000), snap.HighestBid)
			require.Equal(t, testStart, snap.StartedAt)

			cur := m.Current()
			require.NotNil(t, cur)
			require.Equal(t, snap.SessionID, cur.SessionID)

			lot, err := repo.GetLot(context.Background(), tc.lotID)
			require.NoError(t, err)
			require.Equal(t, models.LotActive, lot.AuctionStatus)
			require.Equal(t, 1, pub.count(EventAuctionStarted))
		})
	}
}

func TestManager_SingleSlot(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.StartAuction(ctx, "lot1", 10)
	require.NoError(t, err)

	_, err = m.StartAuction(ctx, "lot2", 10)
	require.ErrorIs(t, err, auctionerrors.ErrAuctionInProgress)
	require.ErrorIs(t, err, auctionerrors.ErrConflict)

	require.Equal(t, first.SessionID, m.Current().SessionID)
}

func TestManager_SoldScenario(t *testing.T) {
	m, repo, pub, clk := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartAuction(ctx, "lot1", 10)
	require.NoError(t, err)
	id := snap.SessionID

	_, err = m.PlaceBid(ctx, id, "orgA", 21000)
	require.NoError(t, err)

	_, err = m.PlaceBid(ctx, id, "orgB", 21000)
	require.ErrorIs(t, err, auctionerrors.ErrBidTooLow)

	_, err = m.PlaceBid(ctx, id, "orgB", 22000)
	require.NoError(t, err)

	runOut(t, clk, m)
	require.Nil(t, m.Current())

	lot, err := repo.GetLot(ctx, "lot1")
	require.NoError(t, err)
	require.True(t, lot.IsSold)
	require.Equal(t, "orgB", lot.OwnerID)
	require.Equal(t, int64(22000), lot.SoldPrice)
	require.Equal(t, models.LotSold, lot.AuctionStatus)

	orgB, err := m.Organization(ctx, "orgB")
	require.NoError(t, err)
	require.Equal(t, int64(78000), orgB.RemainingBudget)
	require.Equal(t, []string{"lot1"}, orgB.Roster)

	orgA, err := m.Organization(ctx, "orgA")
	require.NoError(t, err)
	require.Equal(t, int64(100000), orgA.RemainingBudget)
	require.Empty(t, orgA.Roster)

	ended, err := m.Session(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StatusSold, ended.Status)
	require.Equal(t, "orgB", ended.Result.WinnerID)
	require.Equal(t, "Team B", ended.Result.WinnerName)
	require.Len(t, ended.Bids, 2)

	require.Equal(t, 1, pub.count(EventLotSold))
	require.Equal(t, 1, pub.count(EventAuctionEnded))
	require.Equal(t, 10, pub.count(EventTimerTick))

	// the lot cannot be auctioned again
	_, err = m.StartAuction(ctx, "lot1", 10)
	require.ErrorIs(t, err, auctionerrors.ErrAlreadyOwned)

	// bids on the ended session are refused
	_, err = m.PlaceBid(ctx, id, "orgA", 30000)
	require.ErrorIs(t, err, auctionerrors.ErrAuctionNotActive)
}

func TestManager_UnsoldScenario(t *testing.T) {
	m, repo, pub, clk := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartAuction(ctx, "lot2", 3)
	require.NoError(t, err)

	runOut(t, clk, m)

	lot, err := repo.GetLot(ctx, "lot2")
	require.NoError(t, err)
	require.False(t, lot.IsSold)
	require.Equal(t, models.LotUnsold, lot.AuctionStatus)

	history, err := m.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, snap.SessionID, history[0].SessionID)
	require.Equal(t, models.StatusUnsold, history[0].Status)
	require.Equal(t, int64(0), history[0].Result.FinalPrice)
	require.Zero(t, pub.count(EventLotSold))

	for _, id := range []string{"orgA", "orgB"} {
		org, err := m.Organization(ctx, id)
		require.NoError(t, err)
		require.Equal(t, int64(100000), org.RemainingBudget)
	}

	// an unsold lot can be put up again
	_, err = m.StartAuction(ctx, "lot2", 3)
	require.NoError(t, err)
}

func TestManager_LateBidExtendsTimer(t *testing.T) {
	m, _, pub, clk := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartAuction(ctx, "lot1", 10)
	require.NoError(t, err)

	for m.Current().Remaining > 2 {
		step(t, clk, m)
	}

	bid, err := m.PlaceBid(ctx, snap.SessionID, "orgA", 21000)
	require.NoError(t, err)
	require.Equal(t, 5, bid.Remaining)
	require.Equal(t, 1, pub.count(EventTimerReset))

	step(t, clk, m)
	require.Equal(t, 4, m.Current().Remaining)
}

func TestManager_StopAuction(t *testing.T) {
	m, repo, pub, _ := newTestManager(t)
	ctx := context.Background()

	snap, err := m.StartAuction(ctx, "lot1", 30)
	require.NoError(t, err)
	_, err = m.PlaceBid(ctx, snap.SessionID, "orgA", 25000)
	require.NoError(t, err)

	stopped, err := m.StopAuction(ctx, snap.SessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSold, stopped.Status)
	require.Equal(t, 30, stopped.Remaining)
	require.Nil(t, m.Current())

	org, err := repo.GetOrganization(ctx, "orgA")
	require.NoError(t, err)
	require.Equal(t, int64(75000), org.RemainingBudget)

	_, err = m.StopAuction(ctx, snap.SessionID)
	require.ErrorIs(t, err, auctionerrors.ErrInvalidState)

	_, err = m.StopAuction(ctx, "missing")
	require.ErrorIs(t, err, auctionerrors.ErrSessionNotFound)

	_, err = m.StopAuction(ctx, "")
	require.ErrorIs(t, err, auctionerrors.ErrValidation)

	require.Equal(t, 1, pub.count(EventAuctionEnded))
}

func TestManager_ResetScenario(t *testing.T) {
	m, repo, pub, clk := newTestManager(t)
	ctx := context.Background()

	// one settled sale to revert
	sold, err := m.StartAuction(ctx, "lot2", 30)
	require.NoError(t, err)
	_, err = m.PlaceBid(ctx, sold.SessionID, "orgA", 16000)
	require.NoError(t, err)
	_, err = m.StopAuction(ctx, sold.SessionID)
	require.NoError(t, err)

	// and one running session to discard
	running, err := m.StartAuction(ctx, "lot1", 10)
	require.NoError(t, err)
	_, err = m.PlaceBid(ctx, running.SessionID, "orgB", 30000)
	require.NoError(t, err)
	step(t, clk, m)

	m.mu.Lock()
	discarded := m.countdown
	m.mu.Unlock()

	require.NoError(t, m.ResetAll(ctx))
	require.Nil(t, m.Current())
	<-discarded.Done()

	payload, ok := pub.last(EventAuctionReset)
	require.True(t, ok)
	require.Equal(t, map[string]any{"discarded_session_id": running.SessionID}, payload)
	require.Equal(t, 1, pub.count(EventAuctionEnded), "a discarded session is never settled")

	for _, id := range []string{"lot1", "lot2"} {
		lot, err := repo.GetLot(ctx, id)
		require.NoError(t, err)
		require.False(t, lot.IsSold)
		require.Equal(t, models.LotPending, lot.AuctionStatus)
	}
	for _, id := range []string{"orgA", "orgB"} {
		org, err := repo.GetOrganization(ctx, id)
		require.NoError(t, err)
		require.Equal(t, int64(100000), org.RemainingBudget)
		require.Empty(t, org.Roster)
	}

	history, err := m.History(ctx)
	require.NoError(t, err)
	require.Empty(t, history)

	_, err = m.PlaceBid(ctx, running.SessionID, "orgA", 40000)
	require.ErrorIs(t, err, auctionerrors.ErrSessionNotFound)

	// the discarded countdown never touches the next session
	next, err := m.StartAuction(ctx, "lot1", 10)
	require.NoError(t, err)
	step(t, clk, m)
	cur := m.Current()
	require.Equal(t, next.SessionID, cur.SessionID)
	require.Equal(t, 9, cur.Remaining)
}

func TestManager_ResetWithoutSession(t *testing.T) {
	m, _, pub, _ := newTestManager(t)

	require.NoError(t, m.ResetAll(context.Background()))

	payload, ok := pub.last(EventAuctionReset)
	require.True(t, ok)
	require.Equal(t, map[string]any{"discarded_session_id": ""}, payload)
}

func TestManager_SettlementIncompleteHoldsSlot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := repository.NewMockLotRegistry(ctrl)
	pub := &recordingPublisher{}
	m := NewManager(mockRepo, pub, fakeclock.NewFakeClock(testStart), testRules())
	ctx := context.Background()

	mockRepo.EXPECT().GetLot(gomock.Any(), "lot1").Return(models.Lot{LotID: "lot1", Name: "Virat Kohli", BasePrice: 20000}, nil)
	mockRepo.EXPECT().SetLotStatus(gomock.Any(), "lot1", models.LotActive).Return(nil)
	mockRepo.EXPECT().GetOrganization(gomock.Any(), "orgA").Return(bidder("orgA", 100000), nil)

	snap, err := m.StartAuction(ctx, "lot1", 30)
	require.NoError(t, err)
	_, err = m.PlaceBid(ctx, snap.SessionID, "orgA", 21000)
	require.NoError(t, err)

	mockRepo.EXPECT().ApplySale(gomock.Any(), gomock.Any()).Return(errors.New("registry down")).Times(2)

	_, err = m.StopAuction(ctx, snap.SessionID)
	require.ErrorIs(t, err, auctionerrors.ErrSettlementIncomplete)

	cur := m.Current()
	require.NotNil(t, cur)
	require.Equal(t, models.StatusSettlementIncomplete, cur.Status)

	_, err = m.StartAuction(ctx, "lot2", 30)
	require.ErrorIs(t, err, auctionerrors.ErrAuctionInProgress)

	mockRepo.EXPECT().ApplySale(gomock.Any(), gomock.Any()).Return(nil)
	mockRepo.EXPECT().RecordAuction(gomock.Any(), gomock.Any()).Return(nil)

	settled, err := m.RetrySettlement(ctx, snap.SessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSold, settled.Status)
	require.Nil(t, m.Current())

	mockRepo.EXPECT().ListAuctions(gomock.Any()).Return([]models.SessionSnapshot{settled}, nil)
	_, err = m.RetrySettlement(ctx, snap.SessionID)
	require.ErrorIs(t, err, auctionerrors.ErrNotSettlementPending)
}

func TestManager_Lookups(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	lot, err := m.Lot(ctx, "lot1")
	require.NoError(t, err)
	require.Equal(t, "Virat Kohli", lot.Name)

	_, err = m.Lot(ctx, "")
	require.ErrorIs(t, err, auctionerrors.ErrValidation)

	_, err = m.Lot(ctx, "nope")
	require.ErrorIs(t, err, auctionerrors.ErrNotFound)

	_, err = m.Organization(ctx, "nope")
	require.ErrorIs(t, err, auctionerrors.ErrOrganizationNotFound)

	_, err = m.Session(ctx, "nope")
	require.ErrorIs(t, err, auctionerrors.ErrSessionNotFound)

	require.Nil(t, m.Current())

	snap, err := m.StartAuction(ctx, "lot1", 10)
	require.NoError(t, err)
	live, err := m.Session(ctx, snap.SessionID)
	require.NoError(t, err)
	require.Equal(t, snap.SessionID, live.SessionID)
	require.Equal(t, models.StatusActive, live.Status)
}

func TestManager_HistoryMostRecentFirst(t *testing.T) {
	m, _, _, clk := newTestManager(t)
	ctx := context.Background()

	first, err := m.StartAuction(ctx, "lot1", 30)
	require.NoError(t, err)
	_, err = m.StopAuction(ctx, first.SessionID)
	require.NoError(t, err)

	clk.Increment(time.Minute)

	second, err := m.StartAuction(ctx, "lot2", 30)
	require.NoError(t, err)
	_, err = m.StopAuction(ctx, second.SessionID)
	require.NoError(t, err)

	history, err := m.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second.SessionID, history[0].SessionID)
	require.Equal(t, first.SessionID, history[1].SessionID)
}

func TestManager_Shutdown(t *testing.T) {
	m, repo, pub, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Shutdown(ctx))

	snap, err := m.StartAuction(ctx, "lot1", 30)
	require.NoError(t, err)
	_, err = m.PlaceBid(ctx, snap.SessionID, "orgA", 21000)
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(ctx))
	require.Nil(t, m.Current())

	lot, err := repo.GetLot(ctx, "lot1")
	require.NoError(t, err)
	require.Equal(t, models.LotPending, lot.AuctionStatus)
	require.False(t, lot.IsSold)

	org, err := repo.GetOrganization(ctx, "orgA")
	require.NoError(t, err)
	require.Equal(t, int64(100000), org.RemainingBudget)
	require.Zero(t, pub.count(EventAuctionEnded))

	// the slot is free again
	_, err = m.StartAuction(ctx, "lot1", 30)
	require.NoError(t, err)
}

// hangingSink never completes a delivery until the broadcaster closes
type hangingSink struct{}

func (hangingSink) Deliver(ctx context.Context, _ broadcast.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestManager_CountdownSettlesWithStalledSink(t *testing.T) {
	repo := seedRepo()
	clk := fakeclock.NewFakeClock(testStart)
	events, err := broadcast.New(clk, 1, hangingSink{})
	require.NoError(t, err)
	t.Cleanup(events.Close)

	m := NewManager(repo, events, clk, testRules())
	t.Cleanup(func() { _ = m.ResetAll(context.Background()) })
	ctx := context.Background()

	snap, err := m.StartAuction(ctx, "lot1", 3)
	require.NoError(t, err)

	bidDone := make(chan error, 1)
	go func() {
		_, err := m.PlaceBid(ctx, snap.SessionID, "orgA", 21000)
		bidDone <- err
	}()
	select {
	case err := <-bidDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bid blocked behind a stalled sink")
	}

	runOut(t, clk, m)

	ended, err := m.Session(ctx, snap.SessionID)
	require.NoError(t, err)
	require.Equal(t, models.StatusSold, ended.Status)
	require.Equal(t, 0, ended.Remaining)

	lot, err := repo.GetLot(ctx, "lot1")
	require.NoError(t, err)
	require.True(t, lot.IsSold)
	require.Equal(t, "orgA", lot.OwnerID)
}

// gatedResetRepo holds ResetAll open until release is closed
type gatedResetRepo struct {
	*repository.MemoryRepo
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *gatedResetRepo) ResetAll(ctx context.Context) error {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.MemoryRepo.ResetAll(ctx)
}

func TestManager_StartRefusedWhileResetRuns(t *testing.T) {
	repo := &gatedResetRepo{
		MemoryRepo: seedRepo(),
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	pub := &recordingPublisher{}
	m := NewManager(repo, pub, fakeclock.NewFakeClock(testStart), testRules())
	ctx := context.Background()

	resetDone := make(chan error, 1)
	go func() { resetDone <- m.ResetAll(ctx) }()
	<-repo.entered

	_, err := m.StartAuction(ctx, "lot1", 10)
	require.ErrorIs(t, err, auctionerrors.ErrConflict)
	require.Nil(t, m.Current())

	lot, err := repo.GetLot(ctx, "lot1")
	require.NoError(t, err)
	require.Equal(t, models.LotPending, lot.AuctionStatus)

	close(repo.release)
	require.NoError(t, <-resetDone)

	// once the reset has finished the slot is free again
	snap, err := m.StartAuction(ctx, "lot1", 10)
	require.NoError(t, err)
	require.Equal(t, snap.SessionID, m.Current().SessionID)
	lot, err = repo.GetLot(ctx, "lot1")
	require.NoError(t, err)
	require.Equal(t, models.LotActive, lot.AuctionStatus)
	require.NoError(t, m.ResetAll(ctx))
}
