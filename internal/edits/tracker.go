// Package edits records the time ranges of a replay worth keeping, tagged by
// why they are interesting. The downstream editor uses them to decide what to
// highlight and what to trim.
package edits

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"replay-director/internal/domain/race"
)

// Tracker owns every marker interval. At most one interval per state is open.
type Tracker struct {
	markers []race.Marker
	open    map[race.InterestState]int
	log     zerolog.Logger
}

func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{
		open: make(map[race.InterestState]int),
		log:  log,
	}
}

// Start opens an interval for state. An interval already open for the same
// subject is left open and keeps extending; one open for a different subject
// is closed at `at` and a fresh interval starts at `at`.
func (t *Tracker) Start(state race.InterestState, subject int, at time.Duration) {
	if idx, ok := t.open[state]; ok {
		if t.markers[idx].Subject == subject {
			return
		}
		t.close(idx, at)
	}

	t.markers = append(t.markers, race.Marker{
		State:   state,
		Subject: subject,
		Start:   at,
		Stop:    at,
		Open:    true,
	})
	t.open[state] = len(t.markers) - 1

	t.log.Debug().
		Stringer("state", state).
		Int("subject", subject).
		Dur("session_time", at).
		Msg("interesting thing started")
}

// Stop closes the open interval for state, if any.
func (t *Tracker) Stop(state race.InterestState, at time.Duration) {
	idx, ok := t.open[state]
	if !ok {
		return
	}
	t.close(idx, at)
}

func (t *Tracker) close(idx int, at time.Duration) {
	m := &t.markers[idx]
	if at < m.Start {
		at = m.Start
	}
	m.Stop = at
	m.Open = false
	delete(t.open, m.State)

	t.log.Debug().
		Stringer("state", m.State).
		Int("subject", m.Subject).
		Dur("start", m.Start).
		Dur("stop", m.Stop).
		Msg("interesting thing stopped")
}

// IsOpen reports whether state has an open interval.
func (t *Tracker) IsOpen(state race.InterestState) bool {
	_, ok := t.open[state]
	return ok
}

// Finish closes all open intervals at the end of a run.
func (t *Tracker) Finish(at time.Duration) {
	for _, idx := range t.open {
		t.close(idx, at)
	}
}

// Markers returns a copy of all intervals ordered by start time.
func (t *Tracker) Markers() []race.Marker {
	out := make([]race.Marker, len(t.markers))
	copy(out, t.markers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// For returns the marker handle a rule uses for one state.
func (t *Tracker) For(state race.InterestState) *EditMarker {
	return &EditMarker{tracker: t, state: state}
}

// EditMarker is a rule's handle on one interest state.
type EditMarker struct {
	tracker *Tracker
	state   race.InterestState
	started bool
}

func (m *EditMarker) State() race.InterestState {
	return m.state
}

func (m *EditMarker) Start(at time.Duration, subject int) {
	m.started = true
	m.tracker.Start(m.state, subject, at)
}

func (m *EditMarker) Stop(at time.Duration) {
	if !m.started {
		return
	}
	m.tracker.Stop(m.state, at)
	m.started = false
}

func (m *EditMarker) Started() bool {
	return m.started
}
