package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"health-companion/internal/fhir"
)

// ErrNotFound is returned when a session id is unknown or has expired.
var ErrNotFound = errors.New("session: not found")

// StoreOptions configures session creation.
type StoreOptions struct {
	// TTL is the session lifetime; expired sessions are destroyed.
	TTL time.Duration
	// Reducer bounds the reduced clinical context computed at creation.
	Reducer fhir.Options
	// MaxTurns and MaxChars bound the history window.
	MaxTurns int
	MaxChars int
}

// Store keeps live sessions in memory with TTL-based expiry. Sessions do
// not survive process exit.
type Store struct {
	cache *gocache.Cache
	opts  StoreOptions
}

// NewStore constructs a session store. Expired sessions are purged roughly
// once a minute.
func NewStore(opts StoreOptions) *Store {
	return &Store{
		cache: gocache.New(opts.TTL, time.Minute),
		opts:  opts,
	}
}

// Create builds a new session: it reduces the raw clinical bundle exactly
// once and caches the result for the session lifetime. An empty id gets a
// generated UUID.
func (st *Store) Create(id, patientRef string, rawBundle []byte) (*Session, error) {
	reduced, err := fhir.Reduce(rawBundle, st.opts.Reducer)
	if err != nil {
		return nil, fmt.Errorf("session: reduce clinical bundle: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	sess := &Session{
		ID:         id,
		PatientRef: patientRef,
		reduced:    reduced,
		maxTurns:   st.opts.MaxTurns,
		maxChars:   st.opts.MaxChars,
	}
	if err := st.cache.Add(id, sess, gocache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("session: id %q already exists", id)
	}
	return sess, nil
}

// Get looks up a live session.
func (st *Store) Get(id string) (*Session, error) {
	v, ok := st.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Session), nil
}

// Delete destroys a session (logout).
func (st *Store) Delete(id string) {
	st.cache.Delete(id)
}

// Len reports the number of live sessions.
func (st *Store) Len() int { return st.cache.ItemCount() }
