// Copyright 2026 The Poolvote Authors
// This file is part of Poolvote.
//
// Poolvote is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Poolvote is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Poolvote. If not, see <http://www.gnu.org/licenses/>.

// Package metrics is a thin get-or-create layer over prometheus collectors,
// so callers can grab a counter by name without threading registries around.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var defaultSet = newSet(prometheus.DefaultRegisterer)

type set struct {
	mu       sync.Mutex
	reg      prometheus.Registerer
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func newSet(reg prometheus.Registerer) *set {
	return &set{
		reg:      reg,
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
	}
}

func (s *set) getOrCreateCounter(name string) (prometheus.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[name]; ok {
		return c, nil
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name})
	if err := s.reg.Register(c); err != nil {
		return nil, err
	}
	s.counters[name] = c
	return c, nil
}

func (s *set) getOrCreateGauge(name string) (prometheus.Gauge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gauges[name]; ok {
		return g, nil
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name})
	if err := s.reg.Register(g); err != nil {
		return nil, err
	}
	s.gauges[name] = g
	return g, nil
}

// GetOrCreateCounter returns the registered counter with the given name,
// creating and registering it on first use.
//
// The returned counter is safe to use from concurrent goroutines.
func GetOrCreateCounter(name string) prometheus.Counter {
	c, err := defaultSet.getOrCreateCounter(name)
	if err != nil {
		panic(fmt.Errorf("could not get or create new counter: %w", err))
	}
	return c
}

// GetOrCreateGauge returns the registered gauge with the given name,
// creating and registering it on first use.
//
// The returned gauge is safe to use from concurrent goroutines.
func GetOrCreateGauge(name string) prometheus.Gauge {
	g, err := defaultSet.getOrCreateGauge(name)
	if err != nil {
		panic(fmt.Errorf("could not get or create new gauge: %w", err))
	}
	return g
}
