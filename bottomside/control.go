package main

import (
	"context"

	"go.uber.org/zap"
)

//Motors drives the two wheels
type Motors interface {
	SetDrive(left, right uint16)
}

//Indicators are the two status outputs
type Indicators interface {
	SetIndicators(led1, led2 uint8)
}

const (
	//Sentinel is the raw reading with every sensor dark; it stops the robot for good
	Sentinel byte = 0xFF

	steeringMask  = 0b00011000
	steeringShift = 3
)

//SteeringCode extracts the two center sensors from a raw reading
func SteeringCode(raw byte) InputCode {
	return InputCode((raw & steeringMask) >> steeringShift)
}

//Controller owns the control cursor and runs the transition engine
type Controller struct {
	table  *Table
	shared *Shared
	motors Motors
	leds   Indicators
	status *Status
	log    *zap.Logger

	cursor StateID
	input  InputCode
	sample byte
	halted bool
	onHalt func()
}

//NewController puts the cursor at the table's start state
func NewController(table *Table, shared *Shared, motors Motors, leds Indicators, status *Status, log *zap.Logger) *Controller {
	if status == nil {
		status = &Status{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		table:  table,
		shared: shared,
		motors: motors,
		leds:   leds,
		status: status,
		log:    log,
		cursor: table.Start(),
	}
	currentState.WithLabelValues(table.State(c.cursor).Name).Set(1)
	c.report(0, false)
	return c
}

//OnHalt registers fn to run once when the terminal state is entered
func (c *Controller) OnHalt(fn func()) { c.onHalt = fn }

//Current is the state the cursor is in
func (c *Controller) Current() StateID { return c.cursor }

//Input is the latched steering code
func (c *Controller) Input() InputCode { return c.input }

//Step runs one control loop iteration and reports whether the cursor moved
func (c *Controller) Step() bool {
	forced := false
	if raw, ok := c.shared.consume(); ok {
		samplesConsumed.Inc()
		c.sample = raw
		//compared before masking: only a fully dark array is fatal
		if raw == Sentinel {
			forced = c.emergencyStop()
		} else {
			c.input = SteeringCode(raw)
		}
	}

	st := c.table.State(c.cursor)
	c.leds.SetIndicators(st.LED1, st.LED2)

	elapsed := c.shared.Elapsed()
	moved := forced
	//a failed reset means a tick just landed; the transition is taken next iteration
	if !forced && elapsed >= st.Dwell && c.shared.resetElapsed(elapsed) {
		c.transition(c.table.Next(c.cursor, c.input))
		moved = true
		elapsed = 0
	}
	c.report(elapsed, true)
	return moved
}

func (c *Controller) emergencyStop() bool {
	term := c.table.Terminal()
	if c.cursor == term {
		return false
	}
	emergencyStops.Inc()
	c.log.Warn("all sensors dark, stopping",
		zap.String("from", c.table.State(c.cursor).Name),
		zap.Uint32("elapsed", c.shared.Elapsed()))
	c.shared.elapsed.Store(0)
	c.transition(term)
	return true
}

func (c *Controller) transition(next StateID) {
	from := c.table.State(c.cursor)
	to := c.table.State(next)
	c.cursor = next
	c.motors.SetDrive(to.Left, to.Right)

	transitionCounter.WithLabelValues(from.Name, to.Name).Inc()
	if from.Name != to.Name {
		currentState.WithLabelValues(from.Name).Set(0)
		currentState.WithLabelValues(to.Name).Set(1)
	}
	if ce := c.log.Check(zap.DebugLevel, "transition"); ce != nil {
		ce.Write(zap.String("from", from.Name), zap.String("to", to.Name), zap.Uint8("input", uint8(c.input)))
	}

	c.status.Lock()
	c.status.Transitions++
	c.status.Unlock()

	if next == c.table.Terminal() && !c.halted {
		c.halted = true
		c.log.Info("terminal state reached", zap.String("state", to.Name))
		if c.onHalt != nil {
			c.onHalt()
		}
	}
}

func (c *Controller) report(elapsed uint32, iteration bool) {
	st := c.table.State(c.cursor)
	c.status.Lock()
	defer c.status.Unlock()
	c.status.State = st.Name
	c.status.Left, c.status.Right = st.Left, st.Right
	c.status.LED1, c.status.LED2 = st.LED1, st.LED2
	c.status.Input = uint8(c.input)
	c.status.Sample = c.sample
	c.status.Elapsed = elapsed
	if iteration {
		c.status.UpdateCount++
	}
	c.status.Halted = c.halted
}

//Run steps the controller after every sampler tick until ctx is done
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("control loop started", zap.String("state", c.table.State(c.cursor).Name))
	for {
		c.Step()
		select {
		case <-ctx.Done():
			c.log.Info("control loop stopped", zap.String("state", c.table.State(c.cursor).Name))
			return nil
		case <-c.shared.Wake():
		}
	}
}
