package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

//fakeBus replays scripted firmware output and records what the host sends
type fakeBus struct {
	out    io.Reader
	sent   bytes.Buffer
	closed bool
}

func (f *fakeBus) Read(p []byte) (int, error)  { return f.out.Read(p) }
func (f *fakeBus) Write(p []byte) (int, error) { return f.sent.Write(p) }
func (f *fakeBus) Close() error {
	f.closed = true
	return nil
}

func newFakeArduino(t *testing.T, replies string) (*Arduino, *fakeBus) {
	bus := &fakeBus{out: strings.NewReader("init\r\nstart\n" + replies)}
	a, err := newArduino(bus, zap.NewNop())
	require.NoError(t, err)
	return a, bus
}

func TestArduinoHandshake(t *testing.T) {
	_, err := newArduino(&fakeBus{out: strings.NewReader("init\nboot\n")}, zap.NewNop())
	assert.EqualError(t, err, `expected "start" but got "boot"`)

	_, err = newArduino(&fakeBus{out: strings.NewReader("init\n")}, zap.NewNop())
	assert.ErrorIs(t, err, io.EOF)
}

func TestArduinoSensor(t *testing.T) {
	a, bus := newFakeArduino(t, "\x18")
	a.BeginAcquisition()
	assert.Equal(t, byte(0x18), a.EndAcquisition())
	assert.Equal(t, "4\n5\n", bus.sent.String())
	assert.NoError(t, a.Err())
}

func TestArduinoDriveScaledAndDeduplicated(t *testing.T) {
	a, bus := newFakeArduino(t, "")
	a.SetDrive(2000, 0)
	a.SetDrive(2000, 0)
	a.SetDrive(15000, 30000)
	assert.Equal(t, "1 34 0\n1 255 255\n", bus.sent.String())
}

func TestArduinoIndicators(t *testing.T) {
	a, bus := newFakeArduino(t, "")
	a.SetIndicators(1, 7)
	a.SetIndicators(1, 7)
	a.SetIndicators(0, 2)
	assert.Equal(t, "6 1 7\n6 0 2\n", bus.sent.String())
}

func TestArduinoButton(t *testing.T) {
	a, bus := newFakeArduino(t, "\x01\x00")
	assert.True(t, a.ButtonPressed())
	assert.False(t, a.ButtonPressed())
	assert.Equal(t, "7\n7\n", bus.sent.String())
}

func TestArduinoLinkFailure(t *testing.T) {
	a, bus := newFakeArduino(t, "")
	assert.Equal(t, Sentinel, a.EndAcquisition(), "dead link reads as all dark")
	select {
	case <-a.Done():
	default:
		t.Fatal("link not marked failed")
	}
	assert.ErrorIs(t, a.Err(), io.EOF)

	bus.sent.Reset()
	a.SetDrive(2000, 2000)
	assert.Empty(t, bus.sent.String(), "no writes after failure")
	assert.False(t, a.ButtonPressed())

	require.NoError(t, a.Close())
	assert.True(t, bus.closed)
}

func TestMapVal(t *testing.T) {
	assert.Equal(t, 0.0, mapVal(-5, 0, 10, 0, 100))
	assert.Equal(t, 50.0, mapVal(5, 0, 10, 0, 100))
	assert.Equal(t, 100.0, mapVal(50, 0, 10, 0, 100))
}
