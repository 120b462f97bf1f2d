package main

import (
	"errors"
	"fmt"
)

//StateID is the index of a State in its Table
type StateID uint8

//InputCode is the 2-bit steering code that selects an outgoing edge
type InputCode uint8

//NumInputs is the number of possible input codes
const NumInputs = 4

//State is one behavioral mode of the robot
type State struct {
	Name        string
	Left, Right uint16 //motor drive levels (PWM duty)
	LED1, LED2  uint8  //LED2 is a 3-bit color code on the reference board
	Dwell       uint32 //ticks to stay before the next transition is allowed
	Next        [NumInputs]StateID
}

var (
	ErrEmptyTable         = errors.New("state table is empty")
	ErrDuplicateState     = errors.New("duplicate state name")
	ErrDanglingTransition = errors.New("transition points outside the table")
	ErrNotAbsorbing       = errors.New("terminal state is not absorbing")
	ErrUnknownState       = errors.New("unknown state")
)

//Table is an immutable arena of states forming the transition graph
type Table struct {
	states   []State
	byName   map[string]StateID
	start    StateID
	terminal StateID
}

//NewTable copies and validates states; every transition must be defined and the terminal must be absorbing
func NewTable(states []State, start, terminal StateID) (*Table, error) {
	if len(states) == 0 {
		return nil, ErrEmptyTable
	}
	if len(states) > 1<<8 {
		return nil, fmt.Errorf("%d states do not fit a StateID", len(states))
	}
	t := &Table{
		states:   append([]State(nil), states...),
		byName:   make(map[string]StateID, len(states)),
		start:    start,
		terminal: terminal,
	}
	for i, s := range t.states {
		if s.Name == "" {
			return nil, fmt.Errorf("state %d has no name", i)
		}
		if _, dup := t.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateState, s.Name)
		}
		t.byName[s.Name] = StateID(i)
		for code, nx := range s.Next {
			if int(nx) >= len(t.states) {
				return nil, fmt.Errorf("%w: %s on input %d -> %d", ErrDanglingTransition, s.Name, code, nx)
			}
		}
	}
	if int(start) >= len(t.states) {
		return nil, fmt.Errorf("%w: start %d", ErrUnknownState, start)
	}
	if int(terminal) >= len(t.states) {
		return nil, fmt.Errorf("%w: terminal %d", ErrUnknownState, terminal)
	}
	for code, nx := range t.states[terminal].Next {
		if nx != terminal {
			return nil, fmt.Errorf("%w: %s leaves to %s on input %d",
				ErrNotAbsorbing, t.states[terminal].Name, t.states[nx].Name, code)
		}
	}
	return t, nil
}

//Start is the state the control cursor begins in
func (t *Table) Start() StateID { return t.start }

//Terminal is the absorbing emergency stop state
func (t *Table) Terminal() StateID { return t.terminal }

//Len is the number of states
func (t *Table) Len() int { return len(t.states) }

//State returns a copy of the state with the given id
func (t *Table) State(id StateID) State { return t.states[id] }

//Next returns the successor of id for the input code; only the low 2 bits of code are used
func (t *Table) Next(id StateID, code InputCode) StateID {
	return t.states[id].Next[code&(NumInputs-1)]
}

//Lookup finds a state by name
func (t *Table) Lookup(name string) (StateID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

//Names lists state names in table order
func (t *Table) Names() []string {
	names := make([]string, len(t.states))
	for i, s := range t.states {
		names[i] = s.Name
	}
	return names
}

//Absorbing reports whether every edge out of id loops back to id
func (t *Table) Absorbing(id StateID) bool {
	for _, nx := range t.states[id].Next {
		if nx != id {
			return false
		}
	}
	return true
}

//reference table indices
const (
	Center StateID = iota
	LeftOff1
	LeftOff2
	RightOff1
	RightOff2
	LostLeft
	LostRight
	Forward
	Stop
	FullStop
)

//fast is the cruise drive level, slow is used to veer while searching
const (
	fast = 2000
	slow = 1000
)

func referenceStates() []State {
	all := func(id StateID) [NumInputs]StateID { return [NumInputs]StateID{id, id, id, id} }
	return []State{
		Center:    {"Center", fast, fast, 0, 2, 5, [NumInputs]StateID{RightOff1, LeftOff1, RightOff1, Center}},
		LeftOff1:  {"LeftOff1", fast, 0, 0, 4, 5, [NumInputs]StateID{LostLeft, LeftOff2, RightOff1, Center}},
		LeftOff2:  {"LeftOff2", fast, 0, 1, 4, 5, [NumInputs]StateID{LostLeft, LeftOff1, RightOff1, Center}},
		RightOff1: {"RightOff1", 0, fast, 0, 1, 5, [NumInputs]StateID{LostRight, LeftOff1, RightOff2, Center}},
		RightOff2: {"RightOff2", 0, fast, 1, 1, 5, [NumInputs]StateID{LostRight, LeftOff1, RightOff1, Center}},
		LostLeft:  {"LostLeft", fast, 0, 0, 6, 50, all(Forward)},
		LostRight: {"LostRight", fast, 0, 0, 3, 50, all(Forward)},
		Forward:   {"Forward", fast, slow, 0, 7, 50, [NumInputs]StateID{Stop, LeftOff1, RightOff1, Center}},
		Stop:      {"Stop", 0, 0, 1, 0, 5, [NumInputs]StateID{Stop, LeftOff1, RightOff1, Center}},
		FullStop:  {"FullStop", 0, 0, 1, 7, 5, all(FullStop)},
	}
}

//ReferenceTable builds the built-in line following table
func ReferenceTable() *Table {
	t, err := NewTable(referenceStates(), Center, FullStop)
	if err != nil {
		panic(err)
	}
	return t
}
