package legs

import (
	"github.com/sawpanic/legscan/internal/domain/classify"
	"github.com/sawpanic/legscan/internal/domain/reference"
)

// State is the serializable snapshot of the detector between bars,
// per spec.md §3 DetectorState. It contains everything ProcessBar
// needs and nothing that can be rederived cheaply, so pause/resume is
// exact: a resumed detector fed the next bar produces the same output
// as an uninterrupted one.
type State struct {
	PrevBar     *classify.Bar
	ActiveLegs  []*Leg
	Swings      map[string]*SwingNode
	PendingBull *PendingOrigin
	PendingBear *PendingOrigin

	LastTurnBarBull    uint64
	LastTurnBarBullSet bool
	LastTurnBarBear    uint64
	LastTurnBarBearSet bool

	PrevBarType classify.Type

	FormedLegImpulses []float64

	HasCreatedBullLeg bool
	HasCreatedBearLeg bool

	// OriginBreachedLegIDs is the cumulative set of legs that have had
	// their origin breached at least once, recorded by updateBreaches.
	// Step 4 (inner-structure pruning) selects its candidates from
	// ActiveLegs by MaxOriginBreach and does not read this set.
	OriginBreachedLegIDs map[string]bool

	BarsSeen uint64
}

// NewState returns the zero-value starting state for a fresh detector.
func NewState() State {
	return State{
		Swings:               make(map[string]*SwingNode),
		OriginBreachedLegIDs: make(map[string]bool),
	}
}

// clone deep-copies the mutable parts of State so GetState can be
// handed to callers without aliasing the detector's live working set.
func (s State) clone() State {
	out := s
	if s.PrevBar != nil {
		b := *s.PrevBar
		out.PrevBar = &b
	}
	out.ActiveLegs = make([]*Leg, len(s.ActiveLegs))
	for i, l := range s.ActiveLegs {
		cp := *l
		out.ActiveLegs[i] = &cp
	}
	out.Swings = make(map[string]*SwingNode, len(s.Swings))
	for k, v := range s.Swings {
		cp := *v
		out.Swings[k] = &cp
	}
	if s.PendingBull != nil {
		p := *s.PendingBull
		out.PendingBull = &p
	}
	if s.PendingBear != nil {
		p := *s.PendingBear
		out.PendingBear = &p
	}
	out.FormedLegImpulses = append([]float64(nil), s.FormedLegImpulses...)
	out.OriginBreachedLegIDs = make(map[string]bool, len(s.OriginBreachedLegIDs))
	for k, v := range s.OriginBreachedLegIDs {
		out.OriginBreachedLegIDs[k] = v
	}
	return out
}

func (s *State) pendingFor(dir reference.Direction) *PendingOrigin {
	if dir == reference.Bull {
		return s.PendingBull
	}
	return s.PendingBear
}

func (s *State) setPendingFor(dir reference.Direction, p *PendingOrigin) {
	if dir == reference.Bull {
		s.PendingBull = p
	} else {
		s.PendingBear = p
	}
}

func (s *State) lastTurnBar(dir reference.Direction) (uint64, bool) {
	if dir == reference.Bull {
		return s.LastTurnBarBull, s.LastTurnBarBullSet
	}
	return s.LastTurnBarBear, s.LastTurnBarBearSet
}

func (s *State) setLastTurnBar(dir reference.Direction, bar uint64) {
	if dir == reference.Bull {
		s.LastTurnBarBull, s.LastTurnBarBullSet = bar, true
	} else {
		s.LastTurnBarBear, s.LastTurnBarBearSet = bar, true
	}
}

func opposite(dir reference.Direction) reference.Direction {
	if dir == reference.Bull {
		return reference.Bear
	}
	return reference.Bull
}
