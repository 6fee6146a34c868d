package auction

import (
	"context"
	"sync"
	"time"

	"lot-auction/internal/repository"
	"lot-auction/utils"

	"code.cloudfoundry.org/clock"
)

// Countdown drives one session's timer. It is bound to the session it was
// created for and never touches any other session.
type Countdown struct {
	session   *Session
	clock     clock.Clock
	period    time.Duration
	mirror    int
	registry  repository.LotRegistry
	publisher Publisher
	expire    func(ctx context.Context, s *Session)

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newCountdown(s *Session, clk clock.Clock, rules Rules, registry repository.LotRegistry, publisher Publisher, expire func(context.Context, *Session)) *Countdown {
	return &Countdown{
		session:   s,
		clock:     clk,
		period:    rules.TickPeriod,
		mirror:    rules.MirrorEvery,
		registry:  registry,
		publisher: publisher,
		expire:    expire,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the tick loop in its own goroutine
func (c *Countdown) Start() {
	go c.run()
}

// Stop cancels the countdown. It does not wait for the loop to exit, so it
// is safe to call from the expiry path running on the loop itself.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Done is closed once the tick loop has exited
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

func (c *Countdown) run() {
	defer close(c.done)

	ticker := c.clock.NewTicker(c.period)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C():
			select {
			case <-c.stop:
				return
			default:
			}
			if !c.onTick() {
				return
			}
		}
	}
}

// onTick applies one tick and reports whether the loop should continue
func (c *Countdown) onTick() bool {
	out := c.session.tick()
	if out.stale {
		return false
	}

	c.publisher.Publish(EventTimerTick, timerPayload(out.snapshot))

	if out.ticks%c.mirror == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), c.period)
		if err := c.registry.MirrorRemaining(ctx, out.snapshot.SessionID, out.snapshot.Remaining); err != nil {
			utils.Warn("countdown: failed to mirror remaining time", map[string]any{
				"session_id": out.snapshot.SessionID,
				"remaining":  out.snapshot.Remaining,
				"error":      err.Error(),
			})
		}
		cancel()
	}

	if out.expired {
		c.Stop()
		c.expire(context.Background(), c.session)
		return false
	}
	return true
}
