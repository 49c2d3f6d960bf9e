package config

import (
	"encoding/json"
	"log"
	"sync"
)

// Store is the live settings holder. Reads come from the web handlers and
// the control listener goroutines, writes only from the run loop, so a
// plain mutex around a value copy is all the coordination needed.
type Store struct {
	mu     sync.Mutex
	s      Settings
	per    Persister
	gen    uint64
	logger *log.Logger
}

// NewStore loads persisted settings through per, falling back to the
// factory defaults when nothing is saved yet or the saved state is
// unreadable. A nil persister keeps everything in memory.
func NewStore(per Persister, logger *log.Logger) *Store {
	st := &Store{s: Defaults(), per: per, gen: 1, logger: logger}
	if per == nil {
		return st
	}
	s, ok, err := per.Load()
	if err != nil {
		st.logf("settings: load failed, using defaults: %v", err)
		return st
	}
	if ok {
		s.clamp()
		st.s = s
	}
	return st
}

func (st *Store) logf(format string, args ...any) {
	if st.logger != nil {
		st.logger.Printf(format, args...)
	}
}

// Snapshot returns a copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Generation increments on every committed change. Renderers compare it
// against the value they last painted.
func (st *Store) Generation() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.gen
}

// Key returns the configured pre-shared key; empty means auth is off.
func (st *Store) Key() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.PSK
}

// CPUEnabled reports whether the CPU bar is switched on.
func (st *Store) CPUEnabled() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.EnableCPU && !st.s.MasterOff
}

// FanEnabled reports whether the fan bar is switched on.
func (st *Store) FanEnabled() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.EnableFan && !st.s.MasterOff
}

// JSON renders the current settings in the control protocol shape.
func (st *Store) JSON() ([]byte, error) {
	st.mu.Lock()
	s := st.s
	st.mu.Unlock()
	return json.Marshal(s)
}

// Apply overlays a settings patch. The patch is applied to a scratch copy
// first; only a patch that decodes cleanly is committed. With save set the
// result is also persisted.
func (st *Store) Apply(data []byte, save bool) error {
	st.mu.Lock()
	next := st.s
	if err := applyPatch(&next, data); err != nil {
		st.mu.Unlock()
		return err
	}
	st.s = next
	st.gen++
	st.mu.Unlock()

	if save {
		return st.persist(next)
	}
	return nil
}

// SetCounts replaces the per-channel pixel counts and persists them.
func (st *Store) SetCounts(counts [4]int) error {
	st.mu.Lock()
	st.s.Counts = counts
	st.s.clamp()
	next := st.s
	st.gen++
	st.mu.Unlock()

	return st.persist(next)
}

// Reset restores and persists the factory defaults, clearing any
// configured key.
func (st *Store) Reset() error {
	st.mu.Lock()
	st.s = Defaults()
	st.gen++
	next := st.s
	st.mu.Unlock()

	return st.persist(next)
}

func (st *Store) persist(s Settings) error {
	if st.per == nil {
		return nil
	}
	return st.per.Save(s)
}
