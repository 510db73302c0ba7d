package monitor

import "time"

type Status int

const (
	StatusUnknown Status = iota
	StatusOnline
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// ParseStatus maps a configured initial state ("online" or "unknown") to a
// Status. Anything else starts Unknown.
func ParseStatus(s string) Status {
	if s == "online" {
		return StatusOnline
	}
	return StatusUnknown
}

type Transition int

const (
	TransitionNone Transition = iota
	TransitionOnline
	TransitionOffline
)

// State is the availability state of the monitored server.
//
// HasNotifiedOffline latches after the offline announcement and is only
// cleared by the success that announces the server back online.
type State struct {
	Status              Status
	ConsecutiveFailures int
	HasNotifiedOffline  bool
	LastCheckedAt       time.Time
	LastWentOfflineAt   time.Time

	// announceUnknown makes the first success after StatusUnknown announce
	// the server as online.
	announceUnknown bool
}

func NewState(initial Status) State {
	if initial == StatusOffline {
		initial = StatusUnknown
	}
	return State{Status: initial, announceUnknown: initial == StatusUnknown}
}

// Observe applies one probe outcome and returns the transition to announce.
func (s *State) Observe(ok bool, now time.Time, notifyAfter int) Transition {
	s.LastCheckedAt = now

	if ok {
		previous := s.Status
		s.Status = StatusOnline
		s.ConsecutiveFailures = 0

		if s.HasNotifiedOffline {
			s.HasNotifiedOffline = false
			return TransitionOnline
		}
		if previous == StatusUnknown && s.announceUnknown {
			return TransitionOnline
		}
		return TransitionNone
	}

	if s.Status != StatusOffline {
		s.LastWentOfflineAt = now
	}
	s.Status = StatusOffline
	s.ConsecutiveFailures++

	if !s.HasNotifiedOffline && s.ConsecutiveFailures >= notifyAfter {
		s.HasNotifiedOffline = true
		return TransitionOffline
	}
	return TransitionNone
}
