// Package common provides shared timing helpers for the commands.
package common

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Lap is one named stage measured by a Stopwatch.
type Lap struct {
	Name     string
	Duration time.Duration
}

// Stopwatch measures consecutive named stages, such as load, inpaint and
// save. It is not safe for concurrent use.
type Stopwatch struct {
	start time.Time
	last  time.Time
	laps  []Lap
	now   func() time.Time
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() *Stopwatch {
	return newStopwatch(time.Now)
}

func newStopwatch(now func() time.Time) *Stopwatch {
	t := now()
	return &Stopwatch{start: t, last: t, now: now}
}

// Lap closes the current stage under name and returns its duration.
func (s *Stopwatch) Lap(name string) time.Duration {
	t := s.now()
	d := t.Sub(s.last)
	s.last = t
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Laps returns the recorded stages in order.
func (s *Stopwatch) Laps() []Lap {
	return append([]Lap(nil), s.laps...)
}

// Total returns the time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration {
	return s.now().Sub(s.start)
}

// String renders the laps as "load=12ms inpaint=340ms".
func (s *Stopwatch) String() string {
	parts := make([]string, len(s.laps))
	for i, l := range s.laps {
		parts[i] = fmt.Sprintf("%s=%v", l.Name, l.Duration.Round(time.Millisecond))
	}
	return strings.Join(parts, " ")
}

// LogValue groups the laps as <name>_ms attributes.
func (s *Stopwatch) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(s.laps)+1)
	for _, l := range s.laps {
		attrs = append(attrs, slog.Int64(l.Name+"_ms", l.Duration.Milliseconds()))
	}
	attrs = append(attrs, slog.Int64("total_ms", s.Total().Milliseconds()))
	return slog.GroupValue(attrs...)
}
