package utils

import (
	"fmt"
	"time"
)

// Progress tracks throughput of a long-running walk and emits a report line
// at most once per interval.
type Progress struct {
	interval time.Duration

	count     int
	startTime time.Time

	lastReportTime  time.Time
	lastReportCount int
}

func NewProgress(interval time.Duration) *Progress {
	return &Progress{
		interval:       interval,
		startTime:      time.Now(),
		lastReportTime: time.Now(),
	}
}

// Step adds n processed items and returns a rate line when a report is due.
func (p *Progress) Step(n int) (string, bool) {
	p.count += n

	elapsed := time.Since(p.lastReportTime)
	if elapsed < p.interval {
		return "", false
	}

	increment := p.count - p.lastReportCount
	line := fmt.Sprintf("processed [%d] items, [%.0f] items/s", increment, float64(increment)/elapsed.Seconds())
	p.lastReportTime = time.Now()
	p.lastReportCount = p.count

	return line, true
}

// Summary reports the overall count and rate since the walk started.
func (p *Progress) Summary() string {
	elapsed := time.Since(p.startTime)
	return fmt.Sprintf("processed [%d] items in [%s], [%.0f] items/s", p.count, elapsed.Round(time.Millisecond), float64(p.count)/elapsed.Seconds())
}
