package main

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

//SimConfig describes a simulated track
type SimConfig struct {
	Length    float64               //distance to the finish pad
	Curve     func(float64) float64 //line curvature at a distance; nil is a straight line
	TurnGain  float64               //offset change per unit of differential drive
	FullScale float64               //drive level that moves one distance unit per reading
	LineWidth float64               //in sensor pitches
	Offset    float64               //initial line position, positive toward the left sensors
}

//DefaultSimConfig is a gently winding track about twenty seconds long
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Length:    2000,
		Curve:     func(d float64) float64 { return 0.02 * math.Sin(d/150) },
		TurnGain:  0.05,
		FullScale: fast,
		LineWidth: 1.2,
	}
}

//SimRobot is a kinematic robot over a line; it stands in for the sensor, motors and LEDs.
//Time advances one step per completed sensor reading.
type SimRobot struct {
	mu  sync.Mutex
	cfg SimConfig
	log *zap.Logger

	offset      float64
	distance    float64
	left, right uint16
	led1, led2  uint8
	charged     bool
}

//NewSimRobot places a robot at the start of the track
func NewSimRobot(cfg SimConfig, log *zap.Logger) *SimRobot {
	if cfg.FullScale <= 0 {
		cfg.FullScale = fast
	}
	if cfg.LineWidth <= 0 {
		cfg.LineWidth = 1.2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SimRobot{cfg: cfg, log: log, offset: cfg.Offset}
}

//BeginAcquisition charges the simulated sensors
func (s *SimRobot) BeginAcquisition() {
	s.mu.Lock()
	s.charged = true
	s.mu.Unlock()
}

//EndAcquisition advances the robot one step and reads the sensors under it
func (s *SimRobot) EndAcquisition() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.charged {
		return 0
	}
	s.charged = false
	s.step()
	if s.distance >= s.cfg.Length {
		return Sentinel
	}
	return s.pattern()
}

func (s *SimRobot) step() {
	l, r := float64(s.left)/s.cfg.FullScale, float64(s.right)/s.cfg.FullScale
	speed := (l + r) / 2
	s.offset += (l - r) * s.cfg.TurnGain
	if s.cfg.Curve != nil {
		s.offset -= s.cfg.Curve(s.distance) * speed
	}
	s.offset = bound(s.offset, -8, 8)
	s.distance += speed
}

//pattern has bit i set when sensor i, at i-3.5 pitches from center, sees the line
func (s *SimRobot) pattern() byte {
	var b byte
	for i := 0; i < 8; i++ {
		if math.Abs(float64(i)-3.5-s.offset) < s.cfg.LineWidth/2 {
			b |= 1 << i
		}
	}
	return b
}

//SetDrive sets the simulated wheel levels
func (s *SimRobot) SetDrive(left, right uint16) {
	s.mu.Lock()
	s.left, s.right = left, right
	s.mu.Unlock()
}

//SetIndicators records the LEDs
func (s *SimRobot) SetIndicators(led1, led2 uint8) {
	s.mu.Lock()
	changed := led1 != s.led1 || led2 != s.led2
	s.led1, s.led2 = led1, led2
	s.mu.Unlock()
	if changed {
		if ce := s.log.Check(zap.DebugLevel, "leds"); ce != nil {
			ce.Write(zap.Uint8("led1", led1), zap.Uint8("led2", led2))
		}
	}
}

//Position returns the line offset and distance travelled
func (s *SimRobot) Position() (offset, distance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, s.distance
}

//Drive returns the wheel levels last set
func (s *SimRobot) Drive() (left, right uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left, s.right
}

//LEDs returns the indicators last set
func (s *SimRobot) LEDs() (led1, led2 uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.led1, s.led2
}
