package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Hy8012/tirslk-maze-1-00-00/internal/logger"
)

const defaultTick = time.Millisecond

//Robot wires the sampler, the controller and the start gate together
type Robot struct {
	Table      *Table
	Shared     *Shared
	Sampler    *Sampler
	Controller *Controller
	Lifecycle  *Lifecycle
	Start      StartControl
	Tick       time.Duration
	Log        *zap.Logger
}

//RobotConfig holds the collaborators a Robot drives
type RobotConfig struct {
	Table      *Table
	Sensor     Sensor
	Motors     Motors
	Indicators Indicators
	Start      StartControl
	Status     *Status
	Tick       time.Duration
	Phases     int
	Log        *zap.Logger
}

//NewRobot builds a robot parked at the start state
func NewRobot(cfg RobotConfig) *Robot {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Status == nil {
		cfg.Status = &Status{}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.Phases == 0 {
		cfg.Phases = DefaultPhases
	}
	shared := NewShared()
	r := &Robot{
		Table:      cfg.Table,
		Shared:     shared,
		Sampler:    NewSampler(cfg.Sensor, shared, cfg.Phases),
		Controller: NewController(cfg.Table, shared, cfg.Motors, cfg.Indicators, cfg.Status, cfg.Log.Named(logger.ComponentControl)),
		Lifecycle:  NewLifecycle(cfg.Status, cfg.Log.Named(logger.ComponentLifecycle)),
		Start:      cfg.Start,
		Tick:       cfg.Tick,
		Log:        cfg.Log,
	}
	return r
}

//Run waits for the start gate, then samples and steers until ctx is done
func (r *Robot) Run(ctx context.Context) error {
	if err := r.Lifecycle.AwaitStart(ctx, r.Start); err != nil {
		return err
	}
	r.Controller.OnHalt(func() {
		if err := r.Lifecycle.Halt(ctx); err != nil {
			r.Log.Warn("lifecycle halt", zap.Error(err))
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.Sampler.Run(ctx, r.Tick, r.Log.Named(logger.ComponentSampler)) })
	g.Go(func() error { return r.Controller.Run(ctx) })
	return g.Wait()
}
