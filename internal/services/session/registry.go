// Package session holds the shared relay state: which connection is logged in
// as which user, and which connections are waiting for or paired with a partner.
//
// All state lives behind one mutex. The lock is held only for map reads and
// writes; callers must never hold it across socket I/O or a timed wait, and no
// method here blocks while holding it.
package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mcoot/pairchat/internal/model"
)

// Errors
var (
	ErrAlreadyLoggedIn = errors.New("user already logged in")
	ErrNotLoggedIn     = errors.New("connection is not logged in")
	ErrAlreadyPooled   = errors.New("connection already entered the pairing pool")
	ErrNotPooled       = errors.New("connection is not in the pairing pool")
	ErrPairingTimeout  = errors.New("timed out waiting for a partner")
)

// Registry is the session registry and pairing coordinator
type Registry struct {
	mu sync.Mutex

	// sessions maps a live connection to its username; users is the reverse
	// index so a username can be held by at most one connection
	sessions map[model.ConnID]string
	users    map[string]model.ConnID

	pairs   map[model.ConnID]*pairEntry
	waiting []model.ConnID // WAITING entries in insertion order

	logger *slog.Logger
}

// Stats is a point-in-time view of the registry
type Stats struct {
	Sessions int `json:"sessions"`
	Waiting  int `json:"waiting"`
	Paired   int `json:"paired"`
}

// NewRegistry creates an empty Registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[model.ConnID]string),
		users:    make(map[string]model.ConnID),
		pairs:    make(map[model.ConnID]*pairEntry),
		logger:   logger.With(slog.String("component", "session")),
	}
}

// TryLogin records id as logged in as username. The check and the insert are
// one critical section, so concurrent logins for one user cannot both succeed.
func (r *Registry) TryLogin(id model.ConnID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; ok {
		return ErrAlreadyLoggedIn
	}
	if _, ok := r.sessions[id]; ok {
		return ErrAlreadyLoggedIn
	}

	r.sessions[id] = username
	r.users[username] = id
	return nil
}

// Username returns the user a connection is logged in as
func (r *Registry) Username(id model.ConnID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	username, ok := r.sessions[id]
	return username, ok
}

// Remove drops a connection's session entry
func (r *Registry) Remove(id model.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeSessionLocked(id)
}

// Release is the shared-state half of connection teardown. In one critical
// section it removes the session entry, retracts the pairing entry and, if the
// partner's entry still points back at id, retracts that too. It returns the
// partner id was paired with, if any. Calling it again is a no-op.
func (r *Registry) Release(id model.ConnID) (model.ConnID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeSessionLocked(id)

	partner, ok := r.retractLocked(id)
	if !ok {
		return model.NoConn, false
	}

	if pe, exists := r.pairs[partner]; exists && pe.partner == id {
		delete(r.pairs, partner)
	}
	return partner, true
}

// Stats returns counts of sessions, waiting connections and settled pairs
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{Sessions: len(r.sessions)}
	for id, e := range r.pairs {
		switch {
		case e.partner == model.NoConn && !e.withdrawn:
			stats.Waiting++
		case e.partner != model.NoConn:
			if pe, ok := r.pairs[e.partner]; ok && pe.partner == id && id < e.partner {
				stats.Paired++
			}
		}
	}
	return stats
}

func (r *Registry) removeSessionLocked(id model.ConnID) {
	username, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	if r.users[username] == id {
		delete(r.users, username)
	}
}
