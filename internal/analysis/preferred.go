package analysis

import (
	"strings"

	"replay-director/internal/domain/race"
	"replay-director/internal/utils"
)

// Preferred is the operator's driver allow-list. When Focus is off every car matches.
type Preferred struct {
	Focus bool
	names map[string]struct{}
}

func NewPreferred(focus bool, drivers []string) Preferred {
	p := Preferred{Focus: focus, names: make(map[string]struct{}, len(drivers))}
	for _, d := range drivers {
		if n := utils.NormalizeDriverName(d); n != "" {
			p.names[n] = struct{}{}
		}
	}
	return p
}

func (p Preferred) Allows(c race.Car) bool {
	if !p.Focus {
		return true
	}
	_, ok := p.names[utils.NormalizeDriverName(c.DriverName)]
	return ok
}

// Filter keeps the cars Allows accepts. With focus on and no preferred car present
// the input is returned unchanged so callers always have someone to show.
func (p Preferred) Filter(cars []race.Car) []race.Car {
	if !p.Focus {
		return cars
	}
	out := make([]race.Car, 0, len(cars))
	for _, c := range cars {
		if p.Allows(c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return cars
	}
	return out
}

func (p Preferred) String() string {
	names := make([]string, 0, len(p.names))
	for n := range p.names {
		names = append(names, n)
	}
	return strings.Join(names, ",")
}
