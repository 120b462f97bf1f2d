package main

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

//run lifecycle phases
const (
	PhaseIdle    = "idle"
	PhaseArmed   = "armed"
	PhaseRunning = "running"
	PhaseHalted  = "halted"
)

const (
	eventPress   = "press"
	eventRelease = "release"
	eventHalt    = "halt"
)

var allPhases = []string{PhaseIdle, PhaseArmed, PhaseRunning, PhaseHalted}

//Lifecycle tracks a run from power-up to the terminal state
type Lifecycle struct {
	fsm    *fsm.FSM
	status *Status
	log    *zap.Logger
}

//NewLifecycle starts in PhaseIdle
func NewLifecycle(status *Status, log *zap.Logger) *Lifecycle {
	l := &Lifecycle{status: status, log: log}
	l.fsm = fsm.NewFSM(
		PhaseIdle,
		fsm.Events{
			{Name: eventPress, Src: []string{PhaseIdle}, Dst: PhaseArmed},
			{Name: eventRelease, Src: []string{PhaseArmed}, Dst: PhaseRunning},
			{Name: eventHalt, Src: []string{PhaseRunning}, Dst: PhaseHalted},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				l.enter(e.Src, e.Dst)
			},
		},
	)
	l.enter("", PhaseIdle)
	return l
}

func (l *Lifecycle) enter(src, dst string) {
	for _, p := range allPhases {
		v := 0.0
		if p == dst {
			v = 1
		}
		lifecyclePhase.WithLabelValues(p).Set(v)
	}
	l.status.setPhase(dst)
	if src != "" {
		l.log.Info("lifecycle", zap.String("from", src), zap.String("to", dst))
	}
}

//Phase is the current lifecycle phase
func (l *Lifecycle) Phase() string { return l.fsm.Current() }

//AwaitStart blocks for a press and then a release of the start control
func (l *Lifecycle) AwaitStart(ctx context.Context, sc StartControl) error {
	l.log.Info("waiting for start button")
	if err := sc.WaitPress(ctx); err != nil {
		return fmt.Errorf("waiting for press: %w", err)
	}
	if err := l.fsm.Event(ctx, eventPress); err != nil {
		return err
	}
	if err := sc.WaitRelease(ctx); err != nil {
		return fmt.Errorf("waiting for release: %w", err)
	}
	return l.fsm.Event(ctx, eventRelease)
}

//Halt moves a running robot to PhaseHalted
func (l *Lifecycle) Halt(ctx context.Context) error {
	return l.fsm.Event(ctx, eventHalt)
}
