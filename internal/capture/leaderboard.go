package capture

import (
	"fmt"
	"sort"
	"time"

	"replay-director/internal/domain/race"
	"replay-director/internal/utils"
)

// LeaderBoardInterval is the session time between captured leaderboards.
const LeaderBoardInterval = 500 * time.Millisecond

// LeaderBoards snapshots the running order for the overlay.
type LeaderBoards struct {
	filter       *SampleFilter
	stripNumbers bool
	boards       []race.LeaderBoard
}

func NewLeaderBoards(stripNumbers bool) *LeaderBoards {
	return &LeaderBoards{
		filter:       NewSampleFilter(LeaderBoardInterval),
		stripNumbers: stripNumbers,
	}
}

func (l *LeaderBoards) Process(sample race.TelemetrySample) {
	if !l.filter.Due(sample) {
		return
	}
	position, counter := racePosition(sample.RaceLaps, sample.SessionLaps)
	l.boards = append(l.boards, race.LeaderBoard{
		StartTime:    sample.Time(),
		RacePosition: position,
		LapCounter:   counter,
		Drivers:      l.drivers(sample),
	})
}

func (l *LeaderBoards) drivers(sample race.TelemetrySample) []race.LeaderBoardDriver {
	cars := sample.ByPosition()
	if len(cars) == 0 {
		// grid order before positions are known
		cars = sample.RaceCars()
		sort.SliceStable(cars, func(i, j int) bool { return cars[i].CarIdx < cars[j].CarIdx })
	}

	drivers := make([]race.LeaderBoardDriver, 0, len(cars))
	for i, c := range cars {
		name := c.DriverName
		if l.stripNumbers {
			name = utils.StripTrailingNumbers(name)
		}
		drivers = append(drivers, race.LeaderBoardDriver{
			CarIdx:       c.CarIdx,
			Position:     i + 1,
			CarNumber:    c.CarNumber,
			DriverName:   name,
			PitStopCount: c.PitStopCount,
		})
	}
	return drivers
}

func (l *LeaderBoards) Boards() []race.LeaderBoard {
	out := make([]race.LeaderBoard, len(l.boards))
	copy(out, l.boards)
	return out
}

func racePosition(raceLaps, sessionLaps int) (position, counter string) {
	switch {
	case raceLaps <= 0:
		return "", ""
	case raceLaps < sessionLaps:
		return fmt.Sprintf("Lap %d/%d", raceLaps, sessionLaps), fmt.Sprintf("Lap %d", raceLaps)
	case raceLaps == sessionLaps:
		return "Final Lap", "Final Lap"
	default:
		return "Results", "Results"
	}
}
