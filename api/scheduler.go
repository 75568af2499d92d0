/*
scheduler.go - Background auto-lock sweeper

PURPOSE:
  Periodically scans active purchases and locks the ones where every
  distribution has been paid. Locking is otherwise an explicit action;
  the sweeper exists so a fully settled purchase does not sit open
  forever when nobody clicks the button.

  Disabled by default (zero interval).

SEE ALSO:
  - handlers.go: Exposes the services the sweeper drives
*/
package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/VSydorenko/office-brew-tracker-sub000/ledger"
)

// AutoLockSweeper locks fully paid active purchases on a fixed
// interval.
type AutoLockSweeper struct {
	Purchases ledger.PurchaseStore
	Statuses  *ledger.StatusService
	Payments  *ledger.PaymentTracker
	Interval  time.Duration
	Log       zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// Start launches the sweep loop. It returns immediately; call Stop to
// shut the loop down. A zero or negative interval disables the
// sweeper.
func (s *AutoLockSweeper) Start() {
	if s.Interval <= 0 {
		s.Log.Info().Msg("auto-lock sweeper disabled")
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		s.Log.Info().Dur("interval", s.Interval).Msg("auto-lock sweeper started")
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to
// finish.
func (s *AutoLockSweeper) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
}

// sweep locks every active purchase whose ledger is fully paid.
func (s *AutoLockSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purchases, err := s.Purchases.ListByStatus(ctx, ledger.StatusActive)
	if err != nil {
		s.Log.Error().Err(err).Msg("auto-lock sweep: list failed")
		return
	}

	locked := 0
	for _, p := range purchases {
		allPaid, err := s.Payments.AllPaid(ctx, p.ID)
		if err != nil {
			s.Log.Error().Err(err).Str("purchase_id", string(p.ID)).Msg("auto-lock sweep: check failed")
			continue
		}
		if !allPaid {
			continue
		}
		if _, err := s.Statuses.LockWhenPaid(ctx, p.ID); err != nil {
			s.Log.Error().Err(err).Str("purchase_id", string(p.ID)).Msg("auto-lock sweep: lock failed")
			continue
		}
		locked++
	}

	if locked > 0 {
		s.Log.Info().Int("locked", locked).Msg("auto-lock sweep complete")
	}
}
