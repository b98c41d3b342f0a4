package session

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/mcoot/pairchat/internal/model"
)

// pairEntry is a connection's place in the pairing map. A zero partner is the
// WAITING sentinel.
type pairEntry struct {
	partner model.ConnID
	// matched receives the partner exactly once when a waiting entry is settled
	matched chan model.ConnID
	// withdrawn marks a waiting entry whose owner stopped waiting
	withdrawn bool
}

// EnterPool puts a logged-in connection up for pairing. If another connection
// is waiting, the oldest one is settled with id and returned with paired=true.
// Otherwise id is recorded as WAITING and paired is false.
func (r *Registry) EnterPool(id model.ConnID) (partner model.ConnID, paired bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return model.NoConn, false, ErrNotLoggedIn
	}
	if _, ok := r.pairs[id]; ok {
		return model.NoConn, false, ErrAlreadyPooled
	}

	for len(r.waiting) > 0 {
		candidate := r.waiting[0]
		r.waiting = r.waiting[1:]

		e, ok := r.pairs[candidate]
		if !ok || candidate == id || e.partner != model.NoConn || e.withdrawn {
			continue
		}

		// Settle both sides before anyone can observe either entry
		e.partner = id
		r.pairs[id] = &pairEntry{partner: candidate}
		e.matched <- id

		r.logger.Info("connections paired",
			slog.String("conn_id", string(id)),
			slog.String("partner_id", string(candidate)))
		return candidate, true, nil
	}

	r.pairs[id] = &pairEntry{matched: make(chan model.ConnID, 1)}
	r.waiting = append(r.waiting, id)
	return model.NoConn, false, nil
}

// WaitForPartner blocks the caller until a waiting connection is matched, the
// timeout elapses (ErrPairingTimeout) or ctx is cancelled. The lock is not held
// while waiting. When the wait gives up, the entry is withdrawn from the pool
// in the same critical section that confirms it is still unmatched; a match
// that wins that race is returned as success.
func (r *Registry) WaitForPartner(ctx context.Context, id model.ConnID, timeout time.Duration) (model.ConnID, error) {
	r.mu.Lock()
	e, ok := r.pairs[id]
	if !ok {
		r.mu.Unlock()
		return model.NoConn, ErrNotPooled
	}
	if e.partner != model.NoConn {
		r.mu.Unlock()
		return e.partner, nil
	}
	if e.withdrawn {
		r.mu.Unlock()
		return model.NoConn, ErrPairingTimeout
	}
	matched := e.matched
	r.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	select {
	case partner := <-matched:
		return partner, nil
	case <-timer.C:
		waitErr = ErrPairingTimeout
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.pairs[id]; ok {
		if e.partner != model.NoConn {
			return e.partner, nil
		}
		e.withdrawn = true
		r.removeWaitingLocked(id)
		return model.NoConn, waitErr
	}

	// Matched, then the partner released us before we looked
	select {
	case partner := <-matched:
		return partner, nil
	default:
		return model.NoConn, waitErr
	}
}

// Partner returns the connection id is paired with
func (r *Registry) Partner(id model.ConnID) (model.ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pairs[id]
	if !ok || e.partner == model.NoConn {
		return model.NoConn, false
	}
	return e.partner, true
}

// Retract removes id's pairing entry and returns its partner, if it had one
func (r *Registry) Retract(id model.ConnID) (model.ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retractLocked(id)
}

func (r *Registry) retractLocked(id model.ConnID) (model.ConnID, bool) {
	e, ok := r.pairs[id]
	if !ok {
		return model.NoConn, false
	}
	delete(r.pairs, id)
	r.removeWaitingLocked(id)

	if e.partner == model.NoConn {
		return model.NoConn, false
	}
	return e.partner, true
}

func (r *Registry) removeWaitingLocked(id model.ConnID) {
	r.waiting = slices.DeleteFunc(r.waiting, func(w model.ConnID) bool {
		return w == id
	})
}
