// Package tap models the IEEE 1149.1 TAP controller so that adapters can be
// driven with explicit TMS sequences.
package tap

import (
	"errors"
	"fmt"
	"strings"
)

// State is one of the 16 TAP controller states.
type State uint8

const (
	StateTestLogicReset State = iota
	StateRunTestIdle
	StateSelectDRScan
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIRScan
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR

	numStates
)

// ErrUnknownState is returned by ParseState for names that are not a state.
var ErrUnknownState = errors.New("tap: unknown state")

var stateNames = [numStates]string{
	"TestLogicReset", "RunTestIdle",
	"SelectDRScan", "CaptureDR", "ShiftDR", "Exit1DR", "PauseDR", "Exit2DR", "UpdateDR",
	"SelectIRScan", "CaptureIR", "ShiftIR", "Exit1IR", "PauseIR", "Exit2IR", "UpdateIR",
}

// aliases are the short names used by SVF and OpenOCD scripts.
var aliases = map[string]State{
	"reset": StateTestLogicReset,
	"tlr":   StateTestLogicReset,
	"idle":  StateRunTestIdle,
	"rti":   StateRunTestIdle,

	"drselect":  StateSelectDRScan,
	"drcapture": StateCaptureDR,
	"drshift":   StateShiftDR,
	"drexit1":   StateExit1DR,
	"drpause":   StatePauseDR,
	"drexit2":   StateExit2DR,
	"drupdate":  StateUpdateDR,

	"irselect":  StateSelectIRScan,
	"ircapture": StateCaptureIR,
	"irshift":   StateShiftIR,
	"irexit1":   StateExit1IR,
	"irpause":   StatePauseIR,
	"irexit2":   StateExit2IR,
	"irupdate":  StateUpdateIR,
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// ParseState accepts the canonical names ("RunTestIdle"), SVF names ("IDLE",
// "DRPAUSE") and hyphenated forms ("SHIFT-DR", "Run-Test/Idle"), ignoring
// case.
func ParseState(name string) (State, error) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '/', ' ':
			return -1
		}
		return r
	}, strings.ToLower(name))

	for s, n := range stateNames {
		if strings.ToLower(n) == key {
			return State(s), nil
		}
	}
	if s, ok := aliases[key]; ok {
		return s, nil
	}
	// "SHIFT-DR" style: verb before register.
	for _, reg := range []string{"dr", "ir"} {
		if verb, ok := strings.CutSuffix(key, reg); ok && verb != "" {
			if s, ok := aliases[reg+verb]; ok {
				return s, nil
			}
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownState, name)
}

// Sequence is a TMS pattern and the states it passes through, starting with
// the state before the first clock.
type Sequence struct {
	TMS    []bool
	States []State
}

// next[s][tms] is the state after one TCK edge.
var next = [numStates][2]State{
	StateTestLogicReset: {StateRunTestIdle, StateTestLogicReset},
	StateRunTestIdle:    {StateRunTestIdle, StateSelectDRScan},
	StateSelectDRScan:   {StateCaptureDR, StateSelectIRScan},
	StateCaptureDR:      {StateShiftDR, StateExit1DR},
	StateShiftDR:        {StateShiftDR, StateExit1DR},
	StateExit1DR:        {StatePauseDR, StateUpdateDR},
	StatePauseDR:        {StatePauseDR, StateExit2DR},
	StateExit2DR:        {StateShiftDR, StateUpdateDR},
	StateUpdateDR:       {StateRunTestIdle, StateSelectDRScan},
	StateSelectIRScan:   {StateCaptureIR, StateTestLogicReset},
	StateCaptureIR:      {StateShiftIR, StateExit1IR},
	StateShiftIR:        {StateShiftIR, StateExit1IR},
	StateExit1IR:        {StatePauseIR, StateUpdateIR},
	StatePauseIR:        {StatePauseIR, StateExit2IR},
	StateExit2IR:        {StateShiftIR, StateUpdateIR},
	StateUpdateIR:       {StateRunTestIdle, StateSelectDRScan},
}

// NextState returns the state reached from current with one TCK edge. It
// panics on a state outside the 16 defined ones.
func NextState(current State, tms bool) State {
	if current >= numStates {
		panic(fmt.Sprintf("tap: unhandled state %d", current))
	}
	if tms {
		return next[current][1]
	}
	return next[current][0]
}

// StateMachine tracks the controller state on the host side. It performs no
// I/O.
type StateMachine struct {
	state State
}

// NewStateMachine returns a machine in Test-Logic-Reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateTestLogicReset}
}

// State returns the tracked state.
func (m *StateMachine) State() State {
	return m.state
}

// Clock applies one TCK edge.
func (m *StateMachine) Clock(tms bool) State {
	m.state = NextState(m.state, tms)
	return m.state
}

// Reset clocks five TMS=1 edges, which reaches Test-Logic-Reset from any
// state.
func (m *StateMachine) Reset() Sequence {
	seq := Sequence{TMS: make([]bool, 5), States: []State{m.state}}
	for i := range seq.TMS {
		seq.TMS[i] = true
		seq.States = append(seq.States, m.Clock(true))
	}
	return seq
}

// GoTo moves the machine to target along the shortest path and returns the
// TMS sequence that does the same on hardware.
func (m *StateMachine) GoTo(target State) (Sequence, error) {
	seq, err := Path(m.state, target)
	if err != nil {
		return Sequence{}, err
	}
	m.state = target
	return seq, nil
}

// Path returns the shortest TMS sequence from one state to another. The
// sequence is empty when from == to.
func Path(from, to State) (Sequence, error) {
	if from >= numStates {
		return Sequence{}, fmt.Errorf("tap: invalid start state %d", from)
	}
	if to >= numStates {
		return Sequence{}, fmt.Errorf("tap: invalid target state %d", to)
	}

	type edge struct {
		prev State
		tms  bool
	}
	var seen [numStates]bool
	var via [numStates]edge
	seen[from] = true
	queue := []State{from}
	for len(queue) > 0 && !seen[to] {
		cur := queue[0]
		queue = queue[1:]
		for i, n := range next[cur] {
			if seen[n] {
				continue
			}
			seen[n] = true
			via[n] = edge{prev: cur, tms: i == 1}
			queue = append(queue, n)
		}
	}

	var tms []bool
	for s := to; s != from; s = via[s].prev {
		tms = append(tms, via[s].tms)
	}
	seq := Sequence{TMS: make([]bool, len(tms)), States: []State{from}}
	for i := range tms {
		seq.TMS[i] = tms[len(tms)-1-i]
		seq.States = append(seq.States, NextState(seq.States[i], seq.TMS[i]))
	}
	return seq, nil
}
