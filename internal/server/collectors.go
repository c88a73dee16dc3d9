package server

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matthewbaird/strata/internal/eventbus"
)

func busDropped(bus *eventbus.Bus) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "strata",
		Subsystem: "eventbus",
		Name:      "dropped_total",
		Help:      "Domain events dropped because the bus was full or stopped.",
	}, func() float64 { return float64(bus.Dropped()) })
}
