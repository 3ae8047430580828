package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"replay-director/internal/domain/race"
)

// Run is an analysis running in the background.
type Run struct {
	ID        uuid.UUID
	TrackName string

	startedAt time.Time
	commands  *commandFeed
	cancel    context.CancelFunc
	done      chan struct{}

	mu     sync.Mutex
	result race.RunResult
}

func newRun(id uuid.UUID, track string, commands *commandFeed, cancel context.CancelFunc) *Run {
	return &Run{
		ID:        id,
		TrackName: track,
		startedAt: time.Now(),
		commands:  commands,
		cancel:    cancel,
		done:      make(chan struct{}),
		result: race.RunResult{
			ID:        id,
			TrackName: track,
			Status:    race.RunRunning,
		},
	}
}

// Done is closed once the run has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Result returns the run's result; its status is running until Done is closed.
func (r *Run) Result() race.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.result
	if !res.Status.Finished() {
		res.StartedAt = r.startedAt
	}
	return res
}

// Commands returns the camera commands issued so far.
func (r *Run) Commands() []race.CameraCommand {
	return r.commands.Commands()
}

// Abort stops the run after the sample in flight.
func (r *Run) Abort() { r.cancel() }

func (r *Run) finish(result race.RunResult) {
	r.mu.Lock()
	r.result = result
	r.mu.Unlock()
	close(r.done)
}

// commandFeed is the camera command sink of a run. It is written by the
// pipeline and read by API callers while the run is in progress.
type commandFeed struct {
	mu       sync.Mutex
	commands []race.CameraCommand
}

func newCommandFeed() *commandFeed {
	return &commandFeed{}
}

func (f *commandFeed) Send(cmd race.CameraCommand) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
}

func (f *commandFeed) Commands() []race.CameraCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]race.CameraCommand, len(f.commands))
	copy(out, f.commands)
	return out
}
