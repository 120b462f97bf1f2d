package main

import "sync"

//Status is the robot state shown to operators
type Status struct {
	sync.Mutex
	RunID       string
	Phase       string //run lifecycle phase
	State       string //current FSM state
	Left, Right uint16 //drive levels of the current state
	LED1, LED2  uint8
	Input       uint8  //latched steering code
	Sample      uint8  //last raw sensor reading
	Elapsed     uint32 //ticks in the current state
	UpdateCount uint64 //number of control loop iterations
	Transitions uint64
	Halted      bool
}

//StatusSnapshot is the unlocked copy of Status sent over the wire
type StatusSnapshot struct {
	RunID       string `json:"runId"`
	Phase       string `json:"phase"`
	State       string `json:"state"`
	Left        uint16 `json:"left"`
	Right       uint16 `json:"right"`
	LED1        uint8  `json:"led1"`
	LED2        uint8  `json:"led2"`
	Input       uint8  `json:"input"`
	Sample      uint8  `json:"sample"`
	Elapsed     uint32 `json:"elapsed"`
	UpdateCount uint64 `json:"updateCount"`
	Transitions uint64 `json:"transitions"`
	Halted      bool   `json:"halted"`
}

//Snapshot copies the status under its lock
func (s *Status) Snapshot() StatusSnapshot {
	s.Lock()
	defer s.Unlock()
	return StatusSnapshot{
		RunID:       s.RunID,
		Phase:       s.Phase,
		State:       s.State,
		Left:        s.Left,
		Right:       s.Right,
		LED1:        s.LED1,
		LED2:        s.LED2,
		Input:       s.Input,
		Sample:      s.Sample,
		Elapsed:     s.Elapsed,
		UpdateCount: s.UpdateCount,
		Transitions: s.Transitions,
		Halted:      s.Halted,
	}
}

func (s *Status) setPhase(phase string) {
	s.Lock()
	s.Phase = phase
	s.Unlock()
}
