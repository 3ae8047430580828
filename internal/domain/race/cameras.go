package race

type CameraAngle string

const (
	AngleInFrontOfCar CameraAngle = "looking_in_front_of_car"
	AngleBehindCar    CameraAngle = "looking_behind_car"
	AngleAtCar        CameraAngle = "looking_at_car"
	AngleAtTrack      CameraAngle = "looking_at_track"
)

var cameraAngles = map[string]CameraAngle{
	"Nose":       AngleInFrontOfCar,
	"Gearbox":    AngleBehindCar,
	"Roll Bar":   AngleInFrontOfCar,
	"LF Susp":    AngleInFrontOfCar,
	"RF Susp":    AngleInFrontOfCar,
	"LR Susp":    AngleBehindCar,
	"RR Susp":    AngleBehindCar,
	"Gyro":       AngleInFrontOfCar,
	"Cockpit":    AngleInFrontOfCar,
	"Blimp":      AngleAtCar,
	"Chopper":    AngleAtCar,
	"Chase":      AngleInFrontOfCar,
	"Rear Chase": AngleBehindCar,
	"Far Chase":  AngleAtCar,
	"TV1":        AngleAtCar,
	"TV2":        AngleAtCar,
	"TV3":        AngleAtCar,
	"Pit Lane":   AngleAtTrack,
	"Pit Lane 2": AngleAtTrack,
}

// TrackCamera is one operator-configured camera for a circuit.
// Group is the simulator's camera group number, resolved at director setup.
type TrackCamera struct {
	TrackName   string      `json:"track_name" yaml:"track_name"`
	CameraName  string      `json:"camera_name" yaml:"camera_name"`
	Group       int         `json:"group,omitempty" yaml:"group,omitempty"`
	Ratio       int         `json:"ratio" yaml:"ratio"`
	AngleName   CameraAngle `json:"angle,omitempty" yaml:"angle,omitempty"`
	IsRaceStart bool        `json:"is_race_start,omitempty" yaml:"is_race_start,omitempty"`
	IsIncident  bool        `json:"is_incident,omitempty" yaml:"is_incident,omitempty"`
	IsLastLap   bool        `json:"is_last_lap,omitempty" yaml:"is_last_lap,omitempty"`
}

// Angle returns the explicit angle or the one implied by the camera name.
func (c TrackCamera) Angle() CameraAngle {
	if c.AngleName != "" {
		return c.AngleName
	}
	if a, ok := cameraAngles[c.CameraName]; ok {
		return a
	}
	return AngleAtCar
}
