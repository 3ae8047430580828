package direction

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"replay-director/internal/domain/race"
)

var (
	ErrNoTrackCameras     = errors.New("track cameras not defined")
	ErrNoRaceStartCamera  = errors.New("no race start camera defined")
	ErrUnknownCameraGroup = errors.New("camera not found in simulator camera groups")
	ErrNilCommandSink     = errors.New("command sink is required")
)

// CommandSink receives every camera command the director issues.
type CommandSink interface {
	Send(cmd race.CameraCommand)
}

// CommandLog is a CommandSink that keeps the commands in memory.
type CommandLog struct {
	commands []race.CameraCommand
}

func (l *CommandLog) Send(cmd race.CameraCommand) {
	l.commands = append(l.commands, cmd)
}

func (l *CommandLog) Commands() []race.CameraCommand {
	out := make([]race.CameraCommand, len(l.commands))
	copy(out, l.commands)
	return out
}

// Track describes the circuit being replayed: the operator's camera catalogue
// and the simulator's camera group numbers keyed by group name.
type Track struct {
	Name    string
	Cameras []race.TrackCamera
	Groups  map[string]int
}

// CameraControl turns "show car X with camera Y" into commands on the sink.
type CameraControl struct {
	cameras   []race.TrackCamera
	raceStart race.TrackCamera
	incident  race.TrackCamera
	lastLap   race.TrackCamera
	picker    distuv.Categorical
	sink      CommandSink
	log       zerolog.Logger
}

func NewCameraControl(track Track, sink CommandSink, src rand.Source, log zerolog.Logger) (*CameraControl, error) {
	if sink == nil {
		return nil, ErrNilCommandSink
	}

	groups := make(map[string]int, len(track.Groups))
	for name, num := range track.Groups {
		groups[strings.ToLower(name)] = num
	}

	var cameras []race.TrackCamera
	for _, tc := range track.Cameras {
		if !strings.EqualFold(tc.TrackName, track.Name) {
			continue
		}
		if len(groups) > 0 {
			num, ok := groups[strings.ToLower(tc.CameraName)]
			if !ok {
				return nil, fmt.Errorf("%w: %q on %s", ErrUnknownCameraGroup, tc.CameraName, track.Name)
			}
			tc.Group = num
		}
		cameras = append(cameras, tc)
	}
	if len(cameras) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoTrackCameras, track.Name)
	}

	cc := &CameraControl{cameras: cameras, sink: sink, log: log}

	found := false
	for _, tc := range cameras {
		if tc.IsRaceStart {
			cc.raceStart, found = tc, true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w for %q", ErrNoRaceStartCamera, track.Name)
	}
	cc.incident = cc.flagged(func(tc race.TrackCamera) bool { return tc.IsIncident })
	cc.lastLap = cc.flagged(func(tc race.TrackCamera) bool { return tc.IsLastLap })

	weights := make([]float64, len(cameras))
	total := 0.0
	for i, tc := range cameras {
		if tc.Ratio > 0 {
			weights[i] = float64(tc.Ratio)
			total += weights[i]
		}
	}
	if total == 0 {
		for i := range weights {
			weights[i] = 1
		}
	}
	cc.picker = distuv.NewCategorical(weights, src)

	return cc, nil
}

func (c *CameraControl) flagged(is func(race.TrackCamera) bool) race.TrackCamera {
	for _, tc := range c.cameras {
		if is(tc) {
			return tc
		}
	}
	return c.raceStart
}

func (c *CameraControl) RaceStartCamera() race.TrackCamera { return c.raceStart }

// IncidentCamera falls back to the race start camera when none is flagged.
func (c *CameraControl) IncidentCamera() race.TrackCamera { return c.incident }

// LastLapCamera falls back to the race start camera when none is flagged.
func (c *CameraControl) LastLapCamera() race.TrackCamera { return c.lastLap }

// RandomCamera draws a camera weighted by its configured ratio.
func (c *CameraControl) RandomCamera() race.TrackCamera {
	return c.cameras[int(c.picker.Rand())]
}

func (c *CameraControl) Cameras() []race.TrackCamera {
	out := make([]race.TrackCamera, len(c.cameras))
	copy(out, c.cameras)
	return out
}

func (c *CameraControl) CameraOnDriver(at time.Duration, car race.Car, camera race.TrackCamera) {
	cmd := race.CameraCommand{
		CarIdx:      car.CarIdx,
		CarNumber:   car.CarNumber,
		CameraGroup: camera.Group,
		CameraName:  camera.CameraName,
		At:          at,
	}
	c.sink.Send(cmd)

	c.log.Debug().
		Dur("session_time", at).
		Str("car_number", car.CarNumber).
		Str("driver", car.DriverName).
		Str("camera", camera.CameraName).
		Msg("camera on driver")
}
