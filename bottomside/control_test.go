package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type drive struct{ left, right uint16 }
type leds struct{ led1, led2 uint8 }

//recorder stands in for the motor driver and LEDs
type recorder struct {
	mu     sync.Mutex
	drives []drive
	leds   []leds
}

func (r *recorder) SetDrive(left, right uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drives = append(r.drives, drive{left, right})
}

func (r *recorder) SetIndicators(led1, led2 uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leds = append(r.leds, leds{led1, led2})
}

func (r *recorder) lastDrive() (drive, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.drives) == 0 {
		return drive{}, false
	}
	return r.drives[len(r.drives)-1], true
}

//ids in slowTable
const (
	slowStart StateID = iota
	slowA
	slowB
	slowHalt
)

//slowTable has a start state with a long dwell
func slowTable(t *testing.T) *Table {
	tbl, err := NewTable([]State{
		slowStart: {"Start", 2000, 2000, 0, 2, 500, [NumInputs]StateID{slowB, slowA, slowB, slowStart}},
		slowA:     {"A", 2000, 0, 0, 4, 5, [NumInputs]StateID{slowA, slowA, slowA, slowStart}},
		slowB:     {"B", 0, 2000, 0, 1, 5, [NumInputs]StateID{slowB, slowB, slowB, slowStart}},
		slowHalt:  {"Halt", 0, 0, 1, 7, 5, [NumInputs]StateID{slowHalt, slowHalt, slowHalt, slowHalt}},
	}, slowStart, slowHalt)
	require.NoError(t, err)
	return tbl
}

type rig struct {
	sensor  *fakeSensor
	shared  *Shared
	sampler *Sampler
	out     *recorder
	status  *Status
	ctl     *Controller
}

func newRig(tbl *Table, reading byte) *rig {
	r := &rig{
		sensor: &fakeSensor{reading: reading},
		shared: NewShared(),
		out:    &recorder{},
		status: &Status{},
	}
	r.sampler = NewSampler(r.sensor, r.shared, DefaultPhases)
	r.ctl = NewController(tbl, r.shared, r.out, r.out, r.status, nil)
	return r
}

//tick runs one timer period followed by one control loop iteration
func (r *rig) tick() bool {
	r.sampler.Tick()
	return r.ctl.Step()
}

func TestDwellGating(t *testing.T) {
	tbl := slowTable(t)
	r := newRig(tbl, 0b00001000) //right center sensor only: input 1

	for i := 1; i < 500; i++ {
		require.False(t, r.tick(), "moved early on tick %d", i)
		require.Equal(t, slowStart, r.ctl.Current())
	}
	assert.Equal(t, InputCode(1), r.ctl.Input())
	_, driven := r.out.lastDrive()
	assert.False(t, driven)

	require.True(t, r.tick(), "tick 500")
	assert.Equal(t, slowA, r.ctl.Current())
	d, _ := r.out.lastDrive()
	assert.Equal(t, drive{2000, 0}, d)
	assert.Equal(t, uint32(0), r.shared.Elapsed())
}

func TestTransitionUsesInputLatchedThisIteration(t *testing.T) {
	tbl := slowTable(t)
	r := newRig(tbl, 0b00001000)
	r.shared.elapsed.Store(600)
	r.shared.publish(0b00010000) //left center only: input 2
	require.True(t, r.ctl.Step())
	assert.Equal(t, slowB, r.ctl.Current())
}

func TestSentinelOverride(t *testing.T) {
	tbl := slowTable(t)
	r := newRig(tbl, 0)
	halts := 0
	r.ctl.OnHalt(func() { halts++ })

	r.shared.elapsed.Store(10)
	r.shared.publish(Sentinel)
	require.True(t, r.ctl.Step())
	assert.Equal(t, slowHalt, r.ctl.Current())
	d, ok := r.out.lastDrive()
	require.True(t, ok)
	assert.Equal(t, drive{0, 0}, d)
	assert.Equal(t, leds{1, 7}, r.out.leds[len(r.out.leds)-1])
	assert.Equal(t, 1, halts)
	assert.True(t, r.status.Snapshot().Halted)
}

func TestSentinelOverrideFromEveryState(t *testing.T) {
	tbl := ReferenceTable()
	for id := 0; id < tbl.Len(); id++ {
		r := newRig(tbl, 0)
		r.ctl.cursor = StateID(id)
		r.shared.publish(Sentinel)
		r.ctl.Step()
		assert.Equal(t, FullStop, r.ctl.Current(), tbl.State(StateID(id)).Name)
	}
}

func TestSentinelIsTheRawByte(t *testing.T) {
	tbl := ReferenceTable()
	//both steering sensors off but others on: lost, not fatal
	r := newRig(tbl, 0b11100111)
	for i := 0; i < 6; i++ {
		r.tick()
	}
	assert.Equal(t, InputCode(0), r.ctl.Input())
	assert.Equal(t, RightOff1, r.ctl.Current())
	assert.NotEqual(t, FullStop, r.ctl.Current())
}

func TestAbsorption(t *testing.T) {
	tbl := ReferenceTable()
	r := newRig(tbl, Sentinel)
	r.tick()
	r.tick()
	require.Equal(t, FullStop, r.ctl.Current())

	readings := []byte{0x00, 0x08, 0x10, 0x18, 0xFF, 0x3C}
	for i := 0; i < 2000; i++ {
		r.sensor.set(readings[i%len(readings)])
		r.tick()
		require.Equal(t, FullStop, r.ctl.Current())
	}
	r.out.mu.Lock()
	defer r.out.mu.Unlock()
	require.NotEmpty(t, r.out.drives)
	for _, d := range r.out.drives {
		assert.Equal(t, drive{0, 0}, d)
	}
}

func TestIndicatorsRenderedEveryIteration(t *testing.T) {
	tbl := slowTable(t)
	r := newRig(tbl, 0x18)
	for i := 0; i < 50; i++ {
		r.tick()
	}
	r.out.mu.Lock()
	defer r.out.mu.Unlock()
	require.Len(t, r.out.leds, 50)
	for _, l := range r.out.leds {
		assert.Equal(t, leds{0, 2}, l)
	}
}

func TestReferenceTableFollowsLine(t *testing.T) {
	tbl := ReferenceTable()
	r := newRig(tbl, 0x18)
	for i := 0; i < 5; i++ {
		r.tick()
	}
	assert.Equal(t, Center, r.ctl.Current())
	d, _ := r.out.lastDrive()
	assert.Equal(t, drive{2000, 2000}, d)

	//line drifts right: left center sensor goes dark
	r.sensor.set(0b00001000)
	for i := 0; i < 10; i++ {
		r.tick()
	}
	assert.Equal(t, LeftOff1, r.ctl.Current())
	d, _ = r.out.lastDrive()
	assert.Equal(t, drive{2000, 0}, d)

	//line gone: wait in LostLeft, then creep forward
	r.sensor.set(0)
	for i := 0; i < 10; i++ {
		r.tick()
	}
	assert.Equal(t, LostLeft, r.ctl.Current())
	for i := 0; i < 50; i++ {
		r.tick()
	}
	assert.Equal(t, Forward, r.ctl.Current())
}

func TestStatusReport(t *testing.T) {
	tbl := slowTable(t)
	r := newRig(tbl, 0x08)
	snap := r.status.Snapshot()
	assert.Equal(t, "Start", snap.State)
	assert.Equal(t, uint64(0), snap.UpdateCount)

	for i := 0; i < 500; i++ {
		r.tick()
	}
	snap = r.status.Snapshot()
	assert.Equal(t, "A", snap.State)
	assert.Equal(t, uint64(500), snap.UpdateCount)
	assert.Equal(t, uint64(1), snap.Transitions)
	assert.Equal(t, uint8(1), snap.Input)
	assert.Equal(t, uint8(0x08), snap.Sample)
	assert.Equal(t, uint16(2000), snap.Left)
}

func TestControllerRun(t *testing.T) {
	tbl := ReferenceTable()
	r := newRig(tbl, 0x18)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.ctl.Run(ctx) }()

	go func() {
		for i := 0; i < 20; i++ {
			r.sampler.Tick()
			time.Sleep(time.Millisecond)
		}
	}()
	require.Eventually(t, func() bool { return r.status.Snapshot().Transitions > 0 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestSteeringCode(t *testing.T) {
	assert.Equal(t, InputCode(0), SteeringCode(0b11100111))
	assert.Equal(t, InputCode(1), SteeringCode(0b00001000))
	assert.Equal(t, InputCode(2), SteeringCode(0b00010000))
	assert.Equal(t, InputCode(3), SteeringCode(0xFF))
}
