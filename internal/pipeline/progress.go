package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress of a multi-item run: images of a
// batch, or regions of a single image.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(current int, err error)
}

// ConsoleProgressCallback redraws a single status line on a terminal.
type ConsoleProgressCallback struct {
	mu       sync.Mutex
	w        io.Writer
	label    string
	barWidth int
	interval time.Duration
	started  time.Time
	drawn    time.Time
}

// NewConsoleProgressCallback writes to w, or stderr when w is nil.
func NewConsoleProgressCallback(w io.Writer, label string) *ConsoleProgressCallback {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleProgressCallback{
		w:        w,
		label:    label,
		barWidth: 40,
		interval: 100 * time.Millisecond,
	}
}

// WithWidth sets the number of bar cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.barWidth = max(width, 1)
	return c
}

// WithUpdateInterval sets the minimum time between redraws. The final
// update is always drawn.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.interval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
	c.drawn = time.Time{}
	_, _ = fmt.Fprintf(c.w, "%s0/%d (0.0%%)\n", c.label, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if current < total && now.Sub(c.drawn) < c.interval {
		return
	}
	c.drawn = now
	if total > 0 {
		_, _ = fmt.Fprint(c.w, "\r"+c.label+progressLine(current, total, c.barWidth, now.Sub(c.started)))
	}
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%sdone in %v\n", c.label, time.Since(c.started).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(current int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\n%sitem %d failed: %v\n", c.label, current, err)
}

// progressLine renders "[####....] 3/8 (37.5%) 1.2/s eta 4s".
func progressLine(current, total, width int, elapsed time.Duration) string {
	frac := float64(current) / float64(total)
	filled := min(int(frac*float64(width)), width)

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(strings.Repeat("#", filled))
	b.WriteString(strings.Repeat(".", width-filled))
	fmt.Fprintf(&b, "] %d/%d (%.1f%%)", current, total, frac*100)

	if current > 0 && elapsed > 0 {
		perSec := float64(current) / elapsed.Seconds()
		fmt.Fprintf(&b, " %.1f/s", perSec)
		if current < total {
			eta := time.Duration(float64(total-current) / perSec * float64(time.Second))
			fmt.Fprintf(&b, " eta %v", eta.Round(time.Second))
		}
	}
	return b.String()
}

// LogProgressCallback reports progress as structured log records, every
// interval items and at the end.
type LogProgressCallback struct {
	logger   *slog.Logger
	level    slog.Level
	interval int
	last     int
	started  time.Time
}

// NewLogProgressCallback logs through logger, or slog.Default when nil.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, interval: 10}
}

// WithInterval sets how many items pass between records.
func (l *LogProgressCallback) WithInterval(n int) *LogProgressCallback {
	l.interval = max(n, 1)
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.started = time.Now()
	l.last = 0
	l.logger.Log(context.Background(), l.level, "Inpainting started", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	if current-l.last < l.interval && current != total {
		return
	}
	l.last = current
	l.logger.Log(context.Background(), l.level, "Inpainting progress",
		"current", current,
		"total", total,
		"elapsed", time.Since(l.started).Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(context.Background(), l.level, "Inpainting finished", "elapsed", time.Since(l.started).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(current int, err error) {
	l.logger.Log(context.Background(), slog.LevelError, "Inpainting failed", "current", current, "error", err)
}

// ProgressFunc adapts a plain function to ProgressCallback. Errors are
// reported with a total of -1; completion is not forwarded.
type ProgressFunc func(current, total int, err error)

func (f ProgressFunc) OnStart(total int)              { f(0, total, nil) }
func (f ProgressFunc) OnProgress(current, total int)  { f(current, total, nil) }
func (f ProgressFunc) OnComplete()                    {}
func (f ProgressFunc) OnError(current int, err error) { f(current, -1, err) }
