package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/certscope/internal/analysis"
)

// progressPrinter redraws a single status line while an analysis runs.
type progressPrinter struct {
	out      io.Writer
	name     string
	total    int
	started  time.Time
	mu       sync.Mutex
	ok       int
	fail     int
	attempt  int
	status   string
	running  bool
	updates  chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	frame    int
}

var spinnerFrames = []string{"|", "/", "-", "\\"}

func newProgressPrinter(out io.Writer, name string) *progressPrinter {
	return &progressPrinter{
		out:     out,
		name:    name,
		total:   2,
		started: time.Now(),
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()
	go p.loop()
}

// Update records one analysis progress event. It is safe for concurrent use.
func (p *progressPrinter) Update(ev analysis.Progress) {
	p.mu.Lock()
	if ev.Source == analysis.SourceGrading && ev.Attempt > 0 {
		p.attempt = ev.Attempt
		if ev.Status != "" {
			p.status = ev.Status
		}
	}
	if ev.Done {
		if ev.Err != nil {
			p.fail++
		} else {
			p.ok++
		}
	}
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

// Stop waits for the redraw loop to exit, then clears the line so nothing
// is drawn over the output that follows.
func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()
		if running {
			<-p.stopped
		}
		fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 80))
	})
}

func (p *progressPrinter) loop() {
	defer close(p.stopped)
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) print() {
	fmt.Fprint(p.out, "\r"+p.line())
}

func (p *progressPrinter) line() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := spinnerFrames[p.frame%len(spinnerFrames)]
	p.frame++

	grading := "waiting"
	if p.attempt > 0 {
		grading = fmt.Sprintf("poll %d", p.attempt)
		if p.status != "" {
			grading += " " + p.status
		}
	}
	return fmt.Sprintf("%s [%s] Sources: %d/%d OK:%d Fail:%d Grading:%s Elapsed:%.0fs",
		frame, p.name, p.ok+p.fail, p.total, p.ok, p.fail, grading, time.Since(p.started).Seconds())
}
