package race

import (
	"fmt"
	"strings"
)

type SessionState int

const (
	SessionPreRace SessionState = iota
	SessionRacing
	SessionFinished
)

var sessionStateNames = map[SessionState]string{
	SessionPreRace:  "pre_race",
	SessionRacing:   "racing",
	SessionFinished: "finished",
}

func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("session_state(%d)", int(s))
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SessionState) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	for state, name := range sessionStateNames {
		if name == v {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(text))
}

// InterestState tags a marker interval with why that stretch of replay matters.
type InterestState int

const (
	InterestNone InterestState = iota
	InterestBattle
	InterestIncident
	InterestRestart
	InterestFirstLap
	InterestLastLap
)

var interestStateNames = map[InterestState]string{
	InterestNone:     "none",
	InterestBattle:   "battle",
	InterestIncident: "incident",
	InterestRestart:  "restart",
	InterestFirstLap: "first_lap",
	InterestLastLap:  "last_lap",
}

func (s InterestState) String() string {
	if name, ok := interestStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("interest_state(%d)", int(s))
}

func (s InterestState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *InterestState) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	for state, name := range interestStateNames {
		if name == v {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown interest state %q", string(text))
}
