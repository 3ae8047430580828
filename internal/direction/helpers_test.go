package direction

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"replay-director/internal/domain/race"
	"replay-director/internal/edits"
)

const trackName = "Spa-Francorchamps"

func testTrack() Track {
	return Track{
		Name: trackName,
		Cameras: []race.TrackCamera{
			{TrackName: trackName, CameraName: "TV1", Ratio: 30, IsRaceStart: true},
			{TrackName: trackName, CameraName: "Chase", Ratio: 20, IsIncident: true},
			{TrackName: trackName, CameraName: "Blimp", Ratio: 10, IsLastLap: true},
			{TrackName: trackName, CameraName: "Cockpit", Ratio: 40},
			{TrackName: "Monza", CameraName: "TV2", Ratio: 10, IsRaceStart: true},
		},
		Groups: map[string]int{"TV1": 11, "Chase": 4, "Blimp": 15, "Cockpit": 2, "TV2": 12},
	}
}

type stubIncidents struct {
	list []race.Incident
}

func (s *stubIncidents) Inside(t time.Duration) []race.Incident {
	var out []race.Incident
	for _, i := range s.list {
		if i.IsInside(t) {
			out = append(out, i)
		}
	}
	return out
}

func newTestCameras(t *testing.T) (*CameraControl, *CommandLog) {
	t.Helper()
	sink := &CommandLog{}
	cc, err := NewCameraControl(testTrack(), sink, rand.NewPCG(1, 2), zerolog.Nop())
	require.NoError(t, err)
	return cc, sink
}

type harness struct {
	director  *Director
	tracker   *edits.Tracker
	sink      *CommandLog
	incidents *stubIncidents
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{
		tracker:   edits.NewTracker(zerolog.Nop()),
		sink:      &CommandLog{},
		incidents: &stubIncidents{},
	}
	d, err := New(settings, testTrack(), h.incidents, h.tracker, h.sink, WithRandSource(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	h.director = d
	return h
}

func (h *harness) lastCommand(t *testing.T) race.CameraCommand {
	t.Helper()
	cmds := h.sink.Commands()
	require.NotEmpty(t, cmds)
	return cmds[len(cmds)-1]
}

func car(idx, position int, lap int, pct float64) race.Car {
	return race.Car{
		CarIdx:       idx,
		CarNumber:    string(rune('A' + idx)),
		DriverName:   "driver " + string(rune('A'+idx)),
		Position:     position,
		Lap:          lap,
		LapDistance:  pct,
		TrackSurface: race.SurfaceOnTrack,
	}
}

// spreadField is a field with no battles: 20s between every car.
func spreadField() []race.Car {
	return []race.Car{
		car(1, 1, 5, 0.9),
		car(2, 2, 5, 0.7),
		car(3, 3, 5, 0.5),
		car(4, 4, 5, 0.3),
		car(5, 5, 5, 0.1),
	}
}

// battleField puts car 4 half a second behind car 3.
func battleField() []race.Car {
	return []race.Car{
		car(1, 1, 5, 0.9),
		car(2, 2, 5, 0.7),
		car(3, 3, 5, 0.5),
		car(4, 4, 5, 0.495),
		car(5, 5, 5, 0.1),
	}
}

func racing(sessionTime float64, cars []race.Car) race.TelemetrySample {
	return race.TelemetrySample{
		SessionTime:    sessionTime,
		SessionState:   race.SessionRacing,
		RaceLaps:       5,
		SessionLaps:    20,
		CamCarIdx:      1,
		AverageLapTime: 100,
		Cars:           cars,
	}
}
