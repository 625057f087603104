package progress

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// Bar renders a tqdm-style progress line that is redrawn in place
type Bar struct {
	description string
	total       int64
	current     int64
	unit        string
	startTime   time.Time
	width       int
	out         io.Writer
	metrics     map[string]float64
}

// NewBar creates a progress bar writing to stdout
func NewBar(description string, total int, unit string) *Bar {
	return NewBarWriter(os.Stdout, description, int64(total), unit)
}

// NewBarWriter creates a progress bar writing to w
func NewBarWriter(w io.Writer, description string, total int64, unit string) *Bar {
	return &Bar{
		description: description,
		total:       total,
		unit:        unit,
		startTime:   time.Now(),
		width:       40,
		out:         w,
		metrics:     make(map[string]float64),
	}
}

// Update sets the current position and metrics, then redraws
func (b *Bar) Update(step int, metrics map[string]float64) {
	b.current = int64(step)
	for k, v := range metrics {
		b.metrics[k] = v
	}
	b.render()
}

// Add advances the bar by n units
func (b *Bar) Add(n int64) {
	b.current += n
	b.render()
}

// Write lets the bar count bytes flowing through an io.TeeReader
func (b *Bar) Write(p []byte) (int, error) {
	b.Add(int64(len(p)))
	return len(p), nil
}

// Finish draws the final state and ends the line
func (b *Bar) Finish() {
	if b.total > 0 {
		b.current = b.total
	}
	b.render()
	fmt.Fprintln(b.out)
}

func (b *Bar) render() {
	var percentage float64
	if b.total > 0 {
		percentage = float64(b.current) / float64(b.total)
	}
	if percentage > 1.0 {
		percentage = 1.0
	}

	filled := int(percentage * float64(b.width))
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", b.width-filled)

	elapsed := time.Since(b.startTime)
	var eta time.Duration
	var rate float64
	if b.current > 0 && elapsed > 0 {
		rate = float64(b.current) / elapsed.Seconds()
		if percentage > 0 {
			eta = time.Duration(float64(elapsed)/percentage) - elapsed
		}
	}

	line := fmt.Sprintf("\r%s: %3.0f%%|%s| %d/%d [%s<%s",
		b.description,
		percentage*100,
		bar,
		b.current,
		b.total,
		formatDuration(elapsed),
		formatDuration(eta),
	)

	if rate > 0 {
		line += fmt.Sprintf(", %.2f%s/s", rate, b.unit)
	}

	// Sorted so the line does not jitter between redraws
	keys := make([]string, 0, len(b.metrics))
	for k := range b.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := b.metrics[key]
		if strings.Contains(key, "acc") {
			line += fmt.Sprintf(", %s=%.2f%%", key, value*100)
		} else {
			line += fmt.Sprintf(", %s=%.4f", key, value)
		}
	}

	line += "]"
	fmt.Fprint(b.out, line)
}

// formatDuration formats duration as MM:SS
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
