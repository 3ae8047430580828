package telemetry

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replay-director/internal/domain/race"
)

const twoSamples = `{"session_time": 10.5, "session_state": "racing", "race_laps": 2, "cars": [{"car_idx": 1, "position": 1, "lap": 2, "lap_distance": 0.25, "track_surface": 3}]}
{"session_time": 11, "session_state": "racing", "race_laps": 2, "under_pace_car": true, "cars": []}
`

func TestJSONLines(t *testing.T) {
	src := NewJSONLines(strings.NewReader(twoSamples))

	samples, err := ReadAll(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, 10.5, samples[0].SessionTime)
	assert.Equal(t, race.SessionRacing, samples[0].SessionState)
	require.Len(t, samples[0].Cars, 1)
	assert.Equal(t, race.SurfaceOnTrack, samples[0].Cars[0].TrackSurface)
	assert.True(t, samples[1].UnderPaceCar)

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestJSONLines_DecodeError(t *testing.T) {
	src := NewJSONLines(strings.NewReader(`{"session_time": 1}` + "\n" + `{"session_time": "soon"}`))

	samples, err := ReadAll(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode sample 2")
	assert.Len(t, samples, 1)
}

func TestSliceSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := NewSliceSource([]race.TelemetrySample{{SessionTime: 1}, {SessionTime: 2}})

	s, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.SessionTime)

	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
