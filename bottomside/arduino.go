package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tarm/serial"
	"go.uber.org/zap"
)

//Arduino commands, one per line
const (
	cmdDrive        = 1
	cmdBeginSensor  = 4
	cmdEndSensor    = 5
	cmdIndicators   = 6
	cmdReadButton   = 7
	refreshInterval = 100 * time.Millisecond
)

//Arduino is a linked arduino carrying the reflectance array, motor driver, LEDs and start button
type Arduino struct {
	lck    sync.Mutex
	bus    io.Closer
	serout *bufio.Reader
	serin  *bufio.Writer
	log    *zap.Logger

	PWMPeriod uint16 //drive level that maps to full duty

	drive    [2]uint8
	leds     [2]uint8
	driveAt  time.Time
	ledsAt   time.Time
	hasDrive bool
	hasLEDs  bool

	errOnce sync.Once
	err     error
	done    chan struct{}
}

//ConnectArduino connnects to an Arduino and waits for its init and start messages
func ConnectArduino(port string, baud int, log *zap.Logger) (*Arduino, error) {
	//init bus
	bus, err := serial.OpenPort(&serial.Config{
		Name:        port,
		Baud:        baud,
		ReadTimeout: time.Second,
	})
	if err != nil {
		return nil, err
	}
	a, err := newArduino(bus, log)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return a, nil
}

//DialArduino retries ConnectArduino with exponential backoff until it succeeds or ctx ends
func DialArduino(ctx context.Context, port string, baud int, log *zap.Logger) (*Arduino, error) {
	var a *Arduino
	op := func() error {
		var err error
		a, err = ConnectArduino(port, baud, log)
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = time.Minute
	notify := func(err error, wait time.Duration) {
		log.Warn("arduino not ready", zap.String("port", port), zap.Error(err), zap.Duration("retry", wait))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("connecting to arduino on %s: %w", port, err)
	}
	log.Info("arduino connected", zap.String("port", port))
	return a, nil
}

func newArduino(bus io.ReadWriteCloser, log *zap.Logger) (*Arduino, error) {
	a := &Arduino{
		bus:       bus,
		serout:    bufio.NewReader(bus),
		serin:     bufio.NewWriter(bus),
		log:       log,
		PWMPeriod: 15000,
		done:      make(chan struct{}),
	}
	for _, want := range []string{"init", "start"} {
		ln, err := a.serout.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if got := strings.TrimSpace(ln); got != want {
			return nil, fmt.Errorf("expected %q but got %q", want, got)
		}
	}
	return a, nil
}

//Done is closed once the link has failed
func (a *Arduino) Done() <-chan struct{} { return a.done }

//Err is the first I/O error seen on the link
func (a *Arduino) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

//Close closes the serial port
func (a *Arduino) Close() error { return a.bus.Close() }

func (a *Arduino) fail(err error) {
	a.errOnce.Do(func() {
		a.err = err
		a.log.Error("arduino link failed", zap.Error(err))
		close(a.done)
	})
}

func (a *Arduino) dead() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

//send writes one command line and flushes it; the caller holds lck
func (a *Arduino) send(cmd int, args ...uint8) bool {
	if a.dead() {
		return false
	}
	var sb strings.Builder
	fmt.Fprint(&sb, cmd)
	for _, v := range args {
		fmt.Fprintf(&sb, " %d", v)
	}
	sb.WriteByte('\n')
	if _, err := a.serin.WriteString(sb.String()); err != nil {
		a.fail(err)
		return false
	}
	if err := a.serin.Flush(); err != nil {
		a.fail(err)
		return false
	}
	return true
}

//query sends a command and reads a one byte reply; the caller holds lck
func (a *Arduino) query(cmd int) (byte, bool) {
	if !a.send(cmd) {
		return 0, false
	}
	b, err := a.serout.ReadByte()
	if err != nil {
		a.fail(err)
		return 0, false
	}
	return b, true
}

//BeginAcquisition charges the reflectance sensors
func (a *Arduino) BeginAcquisition() {
	a.lck.Lock()
	defer a.lck.Unlock()
	a.send(cmdBeginSensor)
}

//EndAcquisition reads the reflectance pattern; a dead link reads as all dark so the robot stops
func (a *Arduino) EndAcquisition() byte {
	a.lck.Lock()
	defer a.lck.Unlock()
	b, ok := a.query(cmdEndSensor)
	if !ok {
		return Sentinel
	}
	return b
}

//SetDrive sets both wheel duty cycles. Unchanged values are only resent every refreshInterval.
func (a *Arduino) SetDrive(left, right uint16) {
	period := float64(a.PWMPeriod)
	v := [2]uint8{
		uint8(mapVal(float64(left), 0, period, 0, 255)),
		uint8(mapVal(float64(right), 0, period, 0, 255)),
	}
	a.lck.Lock()
	defer a.lck.Unlock()
	if a.hasDrive && v == a.drive && time.Since(a.driveAt) < refreshInterval {
		return
	}
	if a.send(cmdDrive, v[0], v[1]) {
		a.drive, a.driveAt, a.hasDrive = v, time.Now(), true
	}
}

//SetIndicators sets LED1 and the LED2 color. Unchanged values are only resent every refreshInterval.
func (a *Arduino) SetIndicators(led1, led2 uint8) {
	v := [2]uint8{led1 & 1, led2 & 7}
	a.lck.Lock()
	defer a.lck.Unlock()
	if a.hasLEDs && v == a.leds && time.Since(a.ledsAt) < refreshInterval {
		return
	}
	if a.send(cmdIndicators, v[0], v[1]) {
		a.leds, a.ledsAt, a.hasLEDs = v, time.Now(), true
	}
}

//ButtonPressed reads the start button
func (a *Arduino) ButtonPressed() bool {
	a.lck.Lock()
	defer a.lck.Unlock()
	b, ok := a.query(cmdReadButton)
	return ok && b != 0
}

func bound(x float64, min float64, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}

func mapVal(x float64, inmin float64, inmax float64, outmin float64, outmax float64) float64 {
	return bound((x-inmin)*(outmax-outmin)/(inmax-inmin)+outmin, outmin, outmax)
}
