package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lot-auction/internal/models"
	"lot-auction/internal/repository"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

type expiryRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (e *expiryRecorder) expire(_ context.Context, s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, s.ID())
}

func (e *expiryRecorder) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// tickOnce advances the clock one period and waits for the session to see it
func tickOnce(t *testing.T, clk *fakeclock.FakeClock, s *Session, period time.Duration) {
	t.Helper()
	before := s.Snapshot().Version
	clk.WaitForWatcherAndIncrement(period)
	require.Eventually(t, func() bool { return s.Snapshot().Version > before }, time.Second, time.Millisecond)
}

func TestCountdown_TicksDownAndExpires(t *testing.T) {
	clk := fakeclock.NewFakeClock(testStart)
	rules := testRules()
	repo := seedRepo()
	pub := &recordingPublisher{}
	rec := &expiryRecorder{}

	s := newActiveSession(t, 3)
	cd := newCountdown(s, clk, rules, repo, pub, rec.expire)
	cd.Start()

	tickOnce(t, clk, s, rules.TickPeriod)
	require.Equal(t, 2, s.Snapshot().Remaining)
	tickOnce(t, clk, s, rules.TickPeriod)
	require.Equal(t, 1, s.Snapshot().Remaining)
	tickOnce(t, clk, s, rules.TickPeriod)

	select {
	case <-cd.Done():
	case <-time.After(time.Second):
		t.Fatal("countdown did not exit after expiry")
	}

	snap := s.Snapshot()
	require.Equal(t, 0, snap.Remaining)
	require.Equal(t, models.StatusSettling, snap.Status)
	require.Equal(t, 1, rec.count())
	require.Equal(t, 3, pub.count(EventTimerTick))

	payload, ok := pub.last(EventTimerTick)
	require.True(t, ok)
	require.Equal(t, 0, payload.(models.TimerPayload).Remaining)
}

func TestCountdown_MirrorsEveryNthTick(t *testing.T) {
	clk := fakeclock.NewFakeClock(testStart)
	rules := testRules()
	rules.MirrorEvery = 5
	repo := seedRepo()
	rec := &expiryRecorder{}

	s := newActiveSession(t, 12)
	cd := newCountdown(s, clk, rules, repo, &recordingPublisher{}, rec.expire)
	cd.Start()
	defer cd.Stop()

	for i := 0; i < 4; i++ {
		tickOnce(t, clk, s, rules.TickPeriod)
	}
	_, ok := repo.MirroredRemaining(s.ID())
	require.False(t, ok, "nothing is mirrored before the fifth tick")

	tickOnce(t, clk, s, rules.TickPeriod)
	require.Eventually(t, func() bool {
		v, ok := repo.MirroredRemaining(s.ID())
		return ok && v == 7
	}, time.Second, time.Millisecond)

	for i := 0; i < 4; i++ {
		tickOnce(t, clk, s, rules.TickPeriod)
	}
	v, _ := repo.MirroredRemaining(s.ID())
	require.Equal(t, 7, v)

	tickOnce(t, clk, s, rules.TickPeriod)
	require.Eventually(t, func() bool {
		v, ok := repo.MirroredRemaining(s.ID())
		return ok && v == 2
	}, time.Second, time.Millisecond)
	require.Zero(t, rec.count())
}

func TestCountdown_MirrorFailureDoesNotStopTimer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	clk := fakeclock.NewFakeClock(testStart)
	rules := testRules()
	rules.MirrorEvery = 1
	rec := &expiryRecorder{}

	mockRepo := repository.NewMockLotRegistry(ctrl)
	mockRepo.EXPECT().MirrorRemaining(gomock.Any(), "s1", gomock.Any()).Return(errors.New("registry down")).Times(2)

	s := newActiveSession(t, 2)
	cd := newCountdown(s, clk, rules, mockRepo, &recordingPublisher{}, rec.expire)
	cd.Start()

	tickOnce(t, clk, s, rules.TickPeriod)
	tickOnce(t, clk, s, rules.TickPeriod)

	<-cd.Done()
	require.Equal(t, 1, rec.count())
}

func TestCountdown_StopsOnStaleSession(t *testing.T) {
	clk := fakeclock.NewFakeClock(testStart)
	rules := testRules()
	rec := &expiryRecorder{}
	pub := &recordingPublisher{}

	s := newActiveSession(t, 10)
	cd := newCountdown(s, clk, rules, seedRepo(), pub, rec.expire)
	cd.Start()

	tickOnce(t, clk, s, rules.TickPeriod)
	require.True(t, s.cancel(testStart))

	clk.Increment(rules.TickPeriod)
	select {
	case <-cd.Done():
	case <-time.After(time.Second):
		t.Fatal("countdown kept running for a cancelled session")
	}

	require.Equal(t, 9, s.Snapshot().Remaining)
	require.Equal(t, 1, pub.count(EventTimerTick))
	require.Zero(t, rec.count())
}

func TestCountdown_Stop(t *testing.T) {
	clk := fakeclock.NewFakeClock(testStart)
	s := newActiveSession(t, 10)
	cd := newCountdown(s, clk, testRules(), seedRepo(), &recordingPublisher{}, (&expiryRecorder{}).expire)
	cd.Start()

	cd.Stop()
	cd.Stop()

	select {
	case <-cd.Done():
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop")
	}
	require.Equal(t, 10, s.Snapshot().Remaining)
}
