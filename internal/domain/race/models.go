package race

import (
	"math"
	"sort"
	"time"
)

type TrackSurface int

const (
	SurfaceNotInWorld TrackSurface = iota - 1
	SurfaceOffTrack
	SurfaceInPitStall
	SurfaceApproachingPits
	SurfaceOnTrack
)

func (s TrackSurface) String() string {
	switch s {
	case SurfaceNotInWorld:
		return "not_in_world"
	case SurfaceOffTrack:
		return "off_track"
	case SurfaceInPitStall:
		return "in_pit_stall"
	case SurfaceApproachingPits:
		return "approaching_pits"
	case SurfaceOnTrack:
		return "on_track"
	default:
		return "unknown"
	}
}

// Car is one car's state inside a TelemetrySample.
type Car struct {
	CarIdx               int          `json:"car_idx"`
	CarNumber            string       `json:"car_number"`
	CarNumberRaw         int          `json:"car_number_raw"`
	DriverName           string       `json:"driver_name"`
	Position             int          `json:"position"`
	Lap                  int          `json:"lap"`
	LapDistance          float64      `json:"lap_distance"`
	TrackSurface         TrackSurface `json:"track_surface"`
	OnPitRoad            bool         `json:"on_pit_road,omitempty"`
	IsPaceCar            bool         `json:"is_pace_car,omitempty"`
	PitStopCount         int          `json:"pit_stop_count,omitempty"`
	HasSeenCheckeredFlag bool         `json:"has_seen_checkered_flag,omitempty"`
	HasRetired           bool         `json:"has_retired,omitempty"`
}

// TotalDistance is the distance covered in laps, including the current lap fraction.
func (c Car) TotalDistance() float64 {
	return float64(c.Lap) + c.LapDistance
}

func (c Car) IsInPits() bool {
	return c.OnPitRoad || c.TrackSurface == SurfaceInPitStall || c.TrackSurface == SurfaceApproachingPits
}

// Valid reports whether the car carries usable distance data.
func (c Car) Valid() bool {
	if c.TrackSurface == SurfaceNotInWorld {
		return false
	}
	d := c.LapDistance
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d >= 0 && c.Lap >= 0
}

type FastLap struct {
	CarIdx     int     `json:"car_idx"`
	CarNumber  string  `json:"car_number"`
	DriverName string  `json:"driver_name"`
	Time       float64 `json:"time"`
}

// TelemetrySample is one time-stamped snapshot of race state.
type TelemetrySample struct {
	SessionTime       float64      `json:"session_time"`
	SessionState      SessionState `json:"session_state"`
	RaceLaps          int          `json:"race_laps"`
	SessionLaps       int          `json:"session_laps,omitempty"`
	CamCarIdx         int          `json:"cam_car_idx"`
	LeaderHasFinished bool         `json:"leader_has_finished,omitempty"`
	UnderPaceCar      bool         `json:"under_pace_car,omitempty"`
	AverageLapTime    float64      `json:"average_lap_time"`
	FastestLap        *FastLap     `json:"fastest_lap,omitempty"`
	Cars              []Car        `json:"cars"`
}

func (s TelemetrySample) Time() time.Duration {
	return Seconds(s.SessionTime)
}

func (s TelemetrySample) Car(idx int) (Car, bool) {
	for _, c := range s.Cars {
		if c.CarIdx == idx {
			return c, true
		}
	}
	return Car{}, false
}

func (s TelemetrySample) CamCar() (Car, bool) {
	return s.Car(s.CamCarIdx)
}

// RaceCars returns every car except the pace car.
func (s TelemetrySample) RaceCars() []Car {
	cars := make([]Car, 0, len(s.Cars))
	for _, c := range s.Cars {
		if !c.IsPaceCar {
			cars = append(cars, c)
		}
	}
	return cars
}

// ByPosition returns the race cars with a known position, leader first.
func (s TelemetrySample) ByPosition() []Car {
	cars := make([]Car, 0, len(s.Cars))
	for _, c := range s.RaceCars() {
		if c.Position > 0 {
			cars = append(cars, c)
		}
	}
	sort.SliceStable(cars, func(i, j int) bool {
		return cars[i].Position < cars[j].Position
	})
	return cars
}

// Seconds converts session seconds into a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

type Incident struct {
	CarIdx     int           `json:"car_idx"`
	CarNumber  string        `json:"car_number"`
	DriverName string        `json:"driver_name"`
	LapNumber  int           `json:"lap_number"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
}

func (i Incident) IsInside(t time.Duration) bool {
	return t >= i.Start && t <= i.End
}

type BattleCandidate struct {
	CarIdx      int           `json:"car_idx"`
	AheadCarIdx int           `json:"ahead_car_idx"`
	Position    int           `json:"position"`
	Gap         time.Duration `json:"gap"`
	Rank        int           `json:"rank"`
}

type Marker struct {
	State   InterestState `json:"state"`
	Subject int           `json:"subject"`
	Start   time.Duration `json:"start"`
	Stop    time.Duration `json:"stop"`
	Open    bool          `json:"open,omitempty"`
}

type CameraCommand struct {
	CarIdx      int           `json:"car_idx"`
	CarNumber   string        `json:"car_number"`
	CameraGroup int           `json:"camera_group"`
	CameraName  string        `json:"camera_name"`
	At          time.Duration `json:"at"`
}

type LeaderBoardDriver struct {
	CarIdx       int    `json:"car_idx"`
	Position     int    `json:"position"`
	CarNumber    string `json:"car_number"`
	DriverName   string `json:"driver_name"`
	PitStopCount int    `json:"pit_stop_count"`
}

type LeaderBoard struct {
	StartTime    time.Duration       `json:"start_time"`
	RacePosition string              `json:"race_position"`
	LapCounter   string              `json:"lap_counter,omitempty"`
	Drivers      []LeaderBoardDriver `json:"drivers"`
}

type FastestLapNotice struct {
	StartTime  time.Duration `json:"start_time"`
	CarNumber  string        `json:"car_number"`
	DriverName string        `json:"driver_name"`
	Time       float64       `json:"time"`
}

// OverlayData is the edit/overlay metadata produced by one analysis run.
type OverlayData struct {
	CapturedVersion string             `json:"captured_version"`
	Incidents       []Incident         `json:"incidents"`
	Markers         []Marker           `json:"markers"`
	CameraCommands  []CameraCommand    `json:"camera_commands"`
	LeaderBoards    []LeaderBoard      `json:"leader_boards"`
	FastestLaps     []FastestLapNotice `json:"fastest_laps"`
}
