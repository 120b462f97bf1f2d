package main

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

//Sensor is the line sensor array; EndAcquisition must come at least one tick after BeginAcquisition
type Sensor interface {
	BeginAcquisition()
	EndAcquisition() byte
}

//DefaultPhases is the number of ticks in one sampling period
const DefaultPhases = 10

//Shared is the state passed between the sampler and the control loop.
//The sampler is the only writer of sample and the only one to set ready.
//The control loop is the only one to clear ready.
//elapsed is incremented by the sampler and reset by the control loop with a compare-and-swap.
type Shared struct {
	elapsed atomic.Uint32
	sample  atomic.Uint32
	ready   atomic.Bool
	wake    chan struct{}
}

//NewShared makes an empty Shared
func NewShared() *Shared {
	return &Shared{wake: make(chan struct{}, 1)}
}

//Elapsed is the number of ticks spent in the current state
func (sh *Shared) Elapsed() uint32 { return sh.elapsed.Load() }

//Sample is the most recent raw sensor reading
func (sh *Shared) Sample() byte { return byte(sh.sample.Load()) }

//Ready reports whether a sample is waiting to be consumed
func (sh *Shared) Ready() bool { return sh.ready.Load() }

//Wake is signaled after every tick
func (sh *Shared) Wake() <-chan struct{} { return sh.wake }

func (sh *Shared) publish(raw byte) {
	sh.sample.Store(uint32(raw))
	sh.ready.Store(true)
}

//consume clears ready and returns the sample if one was waiting
func (sh *Shared) consume() (byte, bool) {
	if !sh.ready.Swap(false) {
		return 0, false
	}
	return byte(sh.sample.Load()), true
}

//resetElapsed zeroes elapsed only if no tick landed since it was read as seen
func (sh *Shared) resetElapsed(seen uint32) bool {
	return sh.elapsed.CompareAndSwap(seen, 0)
}

func (sh *Shared) notify() {
	select {
	case sh.wake <- struct{}{}:
	default:
	}
}

//Sampler splits each sensor read into a start phase and an end phase one tick apart
type Sampler struct {
	sensor Sensor
	shared *Shared
	phases uint32
	phase  uint32
}

//NewSampler creates a sampler cycling over phases ticks (at least 2)
func NewSampler(sensor Sensor, shared *Shared, phases int) *Sampler {
	if phases < 2 {
		phases = 2
	}
	return &Sampler{sensor: sensor, shared: shared, phases: uint32(phases)}
}

//Phase is the position within the sampling period
func (s *Sampler) Phase() uint32 { return s.phase }

//Tick runs one timer period. It never blocks on the sensor.
func (s *Sampler) Tick() {
	switch s.phase {
	case 0:
		s.sensor.BeginAcquisition()
	case 1:
		s.shared.publish(s.sensor.EndAcquisition())
	}
	s.shared.elapsed.Add(1)
	s.phase++
	if s.phase == s.phases {
		s.phase = 0
	}
	tickCounter.Inc()
	s.shared.notify()
}

//Run calls Tick every period until ctx is done
func (s *Sampler) Run(ctx context.Context, period time.Duration, log *zap.Logger) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log.Info("sampling started", zap.Duration("period", period), zap.Uint32("phases", s.phases))
	tick := time.NewTicker(period)
	defer tick.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Info("sampling stopped")
			return nil
		case now := <-tick.C:
			if late := now.Sub(last) - period; late > period {
				lateTicks.Add(float64(late / period))
			}
			last = now
			s.Tick()
		}
	}
}
