package analysis

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replay-director/internal/domain/race"
)

func incidentSample(sessionTime float64, car race.Car) race.TelemetrySample {
	return race.TelemetrySample{
		SessionTime:  sessionTime,
		SessionState: race.SessionRacing,
		RaceLaps:     3,
		CamCarIdx:    car.CarIdx,
		Cars:         []race.Car{car},
	}
}

func onTrack(idx int, name string) race.Car {
	return race.Car{CarIdx: idx, CarNumber: name, DriverName: name, Position: idx, TrackSurface: race.SurfaceOnTrack}
}

func TestIncidents_NewIncidentWindow(t *testing.T) {
	d := NewIncidents(Preferred{}, zerolog.Nop())
	d.Process(incidentSample(100, onTrack(4, "Jane")))

	all := d.All()
	require.Len(t, all, 1)
	assert.Equal(t, 4, all[0].CarIdx)
	assert.Equal(t, 3, all[0].LapNumber)
	assert.Equal(t, 99*time.Second, all[0].Start)
	assert.Equal(t, 108*time.Second, all[0].End)
}

func TestIncidents_MergeWithinFifteenSeconds(t *testing.T) {
	tests := []struct {
		name   string
		second float64
		want   int
	}{
		{name: "gap of 11s merges", second: 120, want: 1},
		{name: "gap of exactly 15s merges", second: 124, want: 1},
		{name: "gap of 16s splits", second: 125, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewIncidents(Preferred{}, zerolog.Nop())
			d.Process(incidentSample(100, onTrack(4, "Jane")))
			d.Process(incidentSample(tt.second, onTrack(4, "Jane")))

			all := d.All()
			require.Len(t, all, tt.want)
			if tt.want == 1 {
				assert.Equal(t, 99*time.Second, all[0].Start)
				assert.Equal(t, race.Seconds(tt.second+8), all[0].End)
				return
			}
			assert.Equal(t, 108*time.Second, all[0].End)
			assert.Equal(t, race.Seconds(tt.second-1), all[1].Start)
			assert.GreaterOrEqual(t, all[1].Start-all[0].End, 15*time.Second)
		})
	}
}

func TestIncidents_PerCarIndependence(t *testing.T) {
	d := NewIncidents(Preferred{}, zerolog.Nop())
	d.Process(incidentSample(100, onTrack(4, "Jane")))
	d.Process(incidentSample(102, onTrack(7, "Max")))
	d.Process(incidentSample(104, onTrack(4, "Jane")))

	all := d.All()
	require.Len(t, all, 2)
	assert.Equal(t, 4, all[0].CarIdx)
	assert.Equal(t, 112*time.Second, all[0].End)
	assert.Equal(t, 7, all[1].CarIdx)
}

func TestIncidents_IgnoresPitsAndNotInWorld(t *testing.T) {
	for _, surface := range []race.TrackSurface{
		race.SurfaceInPitStall,
		race.SurfaceNotInWorld,
		race.SurfaceApproachingPits,
	} {
		t.Run(surface.String(), func(t *testing.T) {
			d := NewIncidents(Preferred{}, zerolog.Nop())
			car := onTrack(4, "Jane")
			car.TrackSurface = surface
			for s := 100.0; s < 200; s += 5 {
				d.Process(incidentSample(s, car))
			}
			assert.Zero(t, d.Len())
		})
	}
}

func TestIncidents_PreferredDriversOnly(t *testing.T) {
	d := NewIncidents(NewPreferred(true, []string{"jane"}), zerolog.Nop())
	d.Process(incidentSample(100, onTrack(7, "Max")))
	d.Process(incidentSample(200, onTrack(4, "Jane")))

	all := d.All()
	require.Len(t, all, 1)
	assert.Equal(t, 4, all[0].CarIdx)
}

func TestIncidents_MissingCameraCar(t *testing.T) {
	d := NewIncidents(Preferred{}, zerolog.Nop())
	s := incidentSample(100, onTrack(4, "Jane"))
	s.CamCarIdx = 99
	d.Process(s)
	assert.Zero(t, d.Len())
}

func TestIncidents_Inside(t *testing.T) {
	d := NewIncidents(Preferred{}, zerolog.Nop())
	d.Process(incidentSample(100, onTrack(4, "Jane")))

	assert.Len(t, d.Inside(99*time.Second), 1)
	assert.Len(t, d.Inside(108*time.Second), 1)
	assert.Empty(t, d.Inside(109*time.Second))
}
