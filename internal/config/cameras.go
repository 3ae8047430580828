package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"replay-director/internal/domain/race"
)

type cameraCatalogue struct {
	Cameras []race.TrackCamera `yaml:"cameras"`
}

// LoadTrackCameras reads the operator's camera catalogue for every track.
func LoadTrackCameras(path string) ([]race.TrackCamera, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera catalogue: %w", err)
	}
	return ParseTrackCameras(data)
}

func ParseTrackCameras(data []byte) ([]race.TrackCamera, error) {
	var cat cameraCatalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse camera catalogue: %w", err)
	}
	for i, c := range cat.Cameras {
		if c.TrackName == "" || c.CameraName == "" {
			return nil, fmt.Errorf("%w: camera entry %d needs track_name and camera_name", ErrInvalidConfig, i+1)
		}
		if c.Ratio < 0 {
			return nil, fmt.Errorf("%w: camera %s/%s has a negative ratio", ErrInvalidConfig, c.TrackName, c.CameraName)
		}
	}
	return cat.Cameras, nil
}
