package direction

import (
	"time"
)

// UnlimitedPosition disables the incident position cutoff.
const UnlimitedPosition = 999

// leaderReselectInterval is the minimum session time between repeated
// "follow the leader" commands.
const leaderReselectInterval = 1500 * time.Millisecond

// Settings is the operator configuration the director and its rules are built with.
type Settings struct {
	CameraStickyPeriod              time.Duration
	BattleStickyPeriod              time.Duration
	BattleGap                       time.Duration
	BattleFactor                    float64
	FollowLeaderAtRaceStartPeriod   time.Duration
	FollowLeaderBeforeRaceEndPeriod time.Duration
	RestartPeriod                   time.Duration
	IgnoreIncidentsBelowPosition    int
	IgnoreIncidentsDuringRaceStart  bool
	FocusOnPreferredDriver          bool
	PreferredDrivers                []string
}

func DefaultSettings() Settings {
	return Settings{
		CameraStickyPeriod:              20 * time.Second,
		BattleStickyPeriod:              2 * time.Minute,
		BattleGap:                       time.Second,
		BattleFactor:                    1.6,
		FollowLeaderAtRaceStartPeriod:   20 * time.Second,
		FollowLeaderBeforeRaceEndPeriod: 20 * time.Second,
		RestartPeriod:                   20 * time.Second,
		IgnoreIncidentsBelowPosition:    10,
	}
}
