package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "linebot"
)

var (
	tickCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sampler",
		Name:      "ticks_total",
		Help:      "Sampler timer periods executed",
	})

	lateTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sampler",
		Name:      "missed_ticks_total",
		Help:      "Timer periods the sampler fell behind by",
	})

	samplesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "control",
		Name:      "samples_total",
		Help:      "Sensor samples consumed by the control loop",
	})

	transitionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "control",
		Name:      "transitions_total",
		Help:      "State transitions taken, by source and destination",
	}, []string{"from", "to"})

	emergencyStops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "control",
		Name:      "emergency_stops_total",
		Help:      "Times the all-sensors sentinel forced the terminal state",
	})

	currentState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "control",
		Name:      "current_state",
		Help:      "1 for the state the control cursor is in, 0 otherwise",
	}, []string{"state"})

	lifecyclePhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "phase",
		Help:      "1 for the current run lifecycle phase, 0 otherwise",
	}, []string{"phase"})
)
