// Package telemetry supplies recorded race samples to an analysis run.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"replay-director/internal/domain/race"
)

// SampleSource yields samples in session time order. Next returns io.EOF
// once the source is exhausted.
type SampleSource interface {
	Next(ctx context.Context) (race.TelemetrySample, error)
}

// SliceSource serves samples already held in memory.
type SliceSource struct {
	samples []race.TelemetrySample
	pos     int
}

func NewSliceSource(samples []race.TelemetrySample) *SliceSource {
	return &SliceSource{samples: samples}
}

func (s *SliceSource) Next(ctx context.Context) (race.TelemetrySample, error) {
	if err := ctx.Err(); err != nil {
		return race.TelemetrySample{}, err
	}
	if s.pos >= len(s.samples) {
		return race.TelemetrySample{}, io.EOF
	}
	sample := s.samples[s.pos]
	s.pos++
	return sample, nil
}

// JSONLines decodes one JSON encoded sample per line.
type JSONLines struct {
	dec  *json.Decoder
	read int
}

func NewJSONLines(r io.Reader) *JSONLines {
	return &JSONLines{dec: json.NewDecoder(r)}
}

func (j *JSONLines) Next(ctx context.Context) (race.TelemetrySample, error) {
	if err := ctx.Err(); err != nil {
		return race.TelemetrySample{}, err
	}
	var sample race.TelemetrySample
	if err := j.dec.Decode(&sample); err != nil {
		if errors.Is(err, io.EOF) {
			return race.TelemetrySample{}, io.EOF
		}
		return race.TelemetrySample{}, fmt.Errorf("decode sample %d: %w", j.read+1, err)
	}
	j.read++
	return sample, nil
}

// ReadAll drains a source into memory.
func ReadAll(ctx context.Context, src SampleSource) ([]race.TelemetrySample, error) {
	var samples []race.TelemetrySample
	for {
		sample, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return samples, nil
		}
		if err != nil {
			return samples, err
		}
		samples = append(samples, sample)
	}
}
