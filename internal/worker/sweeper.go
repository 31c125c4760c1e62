// Package worker runs the periodic expiry sweep: the out-of-band
// reconciliation that releases reservation leases past their deadline.
// The lease stored in data is the timeout mechanism; nothing holds an
// in-memory timer, so a missed tick is simply caught by the next one.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/minghsiao/lamp-reservation/internal/queue"
	"github.com/minghsiao/lamp-reservation/internal/service"
)

// ExpiredSweeper is the slice of BookingService the sweeper needs.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) ([]service.ReleasedLease, error)
}

// Sweeper invokes SweepExpired on a fixed interval and publishes a
// lamp.released event for every lease it frees.
type Sweeper struct {
	svc      ExpiredSweeper
	interval time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	totalReleased int64
	lastSweep     time.Time
}

// NewSweeper constructs a Sweeper. A non-positive interval falls back to
// one minute.
func NewSweeper(svc ExpiredSweeper, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns an error when the sweeper is
// already running.
func (w *Sweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("sweeper already running")
	}
	w.running = true
	w.mu.Unlock()

	log.Printf("sweeper: starting (interval=%s)", w.interval)
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (w *Sweeper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	log.Printf("sweeper: stopped (total released=%d)", w.TotalReleased())
}

// TotalReleased reports how many leases this sweeper has released since
// it started.
func (w *Sweeper) TotalReleased() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalReleased
}

func (w *Sweeper) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start so a restart does not leave stale leases
	// waiting a full interval.
	w.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Sweeper) sweepOnce(ctx context.Context) {
	released, err := w.svc.SweepExpired(ctx)
	if err != nil {
		log.Printf("sweeper: sweep failed: %v", err)
		return
	}
	w.mu.Lock()
	w.totalReleased += int64(len(released))
	w.lastSweep = time.Now().UTC()
	w.mu.Unlock()

	if len(released) == 0 {
		return
	}
	log.Printf("sweeper: released %d expired lease(s)", len(released))
	for _, lease := range released {
		_ = queue.PublishLampReleased(ctx, queue.LampReleasedEvent{
			ReservationID: lease.ReservationID,
			TenantID:      lease.TenantID,
			SlotID:        lease.SlotID,
			SlotCode:      lease.SlotCode,
			Cause:         "expired",
			ReleasedAt:    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
