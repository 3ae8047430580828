package analysis

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"replay-director/internal/domain/race"
)

// FindCandidates returns every car whose time gap to the car directly ahead on
// track is within battleGap, ranked by gap (smallest first, lower CarIdx on ties).
// The result is in rank order; Position is the 1-based track order of the follower.
func FindCandidates(sample race.TelemetrySample, battleGap time.Duration, preferred Preferred) []race.BattleCandidate {
	lapTime := sample.AverageLapTime
	if lapTime <= 0 || math.IsNaN(lapTime) || math.IsInf(lapTime, 0) {
		return nil
	}

	cars := make([]race.Car, 0, len(sample.Cars))
	for _, c := range sample.RaceCars() {
		if !c.Valid() || c.TrackSurface == race.SurfaceInPitStall {
			continue
		}
		cars = append(cars, c)
	}
	sort.SliceStable(cars, func(i, j int) bool {
		return cars[i].TotalDistance() > cars[j].TotalDistance()
	})

	var candidates []race.BattleCandidate
	for i := 1; i < len(cars); i++ {
		ahead, car := cars[i-1], cars[i]
		if !preferred.Allows(ahead) && !preferred.Allows(car) {
			continue
		}
		gap := race.Seconds((ahead.TotalDistance() - car.TotalDistance()) * lapTime)
		if gap > battleGap {
			continue
		}
		candidates = append(candidates, race.BattleCandidate{
			CarIdx:      car.CarIdx,
			AheadCarIdx: ahead.CarIdx,
			Position:    i + 1,
			Gap:         gap,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Gap != candidates[j].Gap {
			return candidates[i].Gap < candidates[j].Gap
		}
		return candidates[i].CarIdx < candidates[j].CarIdx
	})
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates
}

// SelectBattle draws one candidate, weighting each by factor^(n-1-i) where i is
// its track order among the candidates (front first). A factor of 1 is uniform.
func SelectBattle(candidates []race.BattleCandidate, factor float64, src rand.Source) (race.BattleCandidate, bool) {
	switch len(candidates) {
	case 0:
		return race.BattleCandidate{}, false
	case 1:
		return candidates[0], true
	}
	if factor < 1 || math.IsNaN(factor) {
		factor = 1
	}

	ordered := make([]race.BattleCandidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	n := len(ordered)
	weights := make([]float64, n)
	for i := range ordered {
		weights[i] = math.Pow(factor, float64(n-1-i))
	}

	idx := int(distuv.NewCategorical(weights, src).Rand())
	return ordered[idx], true
}

// FindBattle is FindCandidates followed by SelectBattle.
func FindBattle(sample race.TelemetrySample, battleGap time.Duration, factor float64, preferred Preferred, src rand.Source) (race.BattleCandidate, bool) {
	return SelectBattle(FindCandidates(sample, battleGap, preferred), factor, src)
}
