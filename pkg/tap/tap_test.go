package tap

import (
	"errors"
	"testing"
)

func TestNextStateTable(t *testing.T) {
	type transition struct {
		start State
		tms   bool
		end   State
	}

	cases := []transition{
		{StateTestLogicReset, false, StateRunTestIdle},
		{StateTestLogicReset, true, StateTestLogicReset},
		{StateRunTestIdle, true, StateSelectDRScan},
		{StateSelectDRScan, false, StateCaptureDR},
		{StateShiftDR, true, StateExit1DR},
		{StateExit2DR, false, StateShiftDR},
		{StateSelectIRScan, true, StateTestLogicReset},
		{StateCaptureIR, false, StateShiftIR},
		{StatePauseIR, true, StateExit2IR},
		{StateExit2IR, true, StateUpdateIR},
	}

	for _, tc := range cases {
		got := NextState(tc.start, tc.tms)
		if got != tc.end {
			t.Fatalf("NextState(%s, %v) = %s, want %s", tc.start, tc.tms, got, tc.end)
		}
	}
}

func TestStateMachineReset(t *testing.T) {
	m := NewStateMachine()
	// Move out of reset to ensure Reset() actually travels back.
	m.Clock(false) // -> Run-Test/Idle
	if m.State() != StateRunTestIdle {
		t.Fatalf("State() = %s, want %s", m.State(), StateRunTestIdle)
	}

	seq := m.Reset()

	if len(seq.TMS) != 5 {
		t.Fatalf("Reset sequence length = %d, want 5", len(seq.TMS))
	}
	if want := StateTestLogicReset; m.State() != want {
		t.Fatalf("State after reset = %s, want %s", m.State(), want)
	}
	if seq.States[len(seq.States)-1] != StateTestLogicReset {
		t.Fatalf("Final sequence state = %s, want %s", seq.States[len(seq.States)-1], StateTestLogicReset)
	}
}

func TestGoToProducesExpectedPattern(t *testing.T) {
	m := NewStateMachine()
	// Move into Run-Test/Idle so GoTo has to traverse more than one edge.
	m.Clock(false)

	path, err := m.GoTo(StateShiftIR)
	if err != nil {
		t.Fatalf("GoTo returned error: %v", err)
	}

	wantBits := []bool{true, true, false, false}
	if len(path.TMS) != len(wantBits) {
		t.Fatalf("GoTo length = %d, want %d", len(path.TMS), len(wantBits))
	}
	for i, want := range wantBits {
		if path.TMS[i] != want {
			t.Fatalf("path bit %d = %v, want %v", i, path.TMS[i], want)
		}
	}
	if m.State() != StateShiftIR {
		t.Fatalf("State() = %s, want %s", m.State(), StateShiftIR)
	}

	// Go back to Run-Test/Idle to ensure BFS works from IR path.
	if _, err := m.GoTo(StateRunTestIdle); err != nil {
		t.Fatalf("GoTo RunTestIdle returned error: %v", err)
	}
	if m.State() != StateRunTestIdle {
		t.Fatalf("State() = %s, want %s", m.State(), StateRunTestIdle)
	}
}

func TestPathCoversEveryPair(t *testing.T) {
	for from := StateTestLogicReset; from <= StateUpdateIR; from++ {
		for to := StateTestLogicReset; to <= StateUpdateIR; to++ {
			seq, err := Path(from, to)
			if err != nil {
				t.Fatalf("Path(%s, %s) returned error: %v", from, to, err)
			}
			if len(seq.States) != len(seq.TMS)+1 {
				t.Fatalf("Path(%s, %s) has %d states for %d edges", from, to, len(seq.States), len(seq.TMS))
			}
			for i, tms := range seq.TMS {
				if NextState(seq.States[i], tms) != seq.States[i+1] {
					t.Fatalf("Path(%s, %s) step %d is not a TAP edge", from, to, i)
				}
			}
			if got := seq.States[len(seq.States)-1]; got != to {
				t.Fatalf("Path(%s, %s) ends in %s", from, to, got)
			}
		}
	}
}

func TestPathRejectsInvalidStates(t *testing.T) {
	if _, err := Path(State(42), StateShiftDR); err == nil {
		t.Fatal("expected error for invalid start state")
	}
	if _, err := Path(StateShiftDR, State(42)); err == nil {
		t.Fatal("expected error for invalid target state")
	}
}

func TestParseState(t *testing.T) {
	cases := map[string]State{
		"RunTestIdle":      StateRunTestIdle,
		"IDLE":             StateRunTestIdle,
		"Run-Test/Idle":    StateRunTestIdle,
		"RESET":            StateTestLogicReset,
		"test-logic-reset": StateTestLogicReset,
		"SHIFT-DR":         StateShiftDR,
		"shift_ir":         StateShiftIR,
		"DRPAUSE":          StatePauseDR,
		"SELECT-DR":        StateSelectDRScan,
		"exit1-ir":         StateExit1IR,
	}
	for name, want := range cases {
		got, err := ParseState(name)
		if err != nil {
			t.Fatalf("ParseState(%q) returned error: %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseState(%q) = %s, want %s", name, got, want)
		}
	}

	_, err := ParseState("SHIFT-XR")
	if !errors.Is(err, ErrUnknownState) {
		t.Fatalf("ParseState(SHIFT-XR) error = %v, want ErrUnknownState", err)
	}
}

func TestStateString(t *testing.T) {
	if got := StatePauseIR.String(); got != "PauseIR" {
		t.Fatalf("String() = %q", got)
	}
	if got := State(99).String(); got != "State(99)" {
		t.Fatalf("String() = %q", got)
	}
}
