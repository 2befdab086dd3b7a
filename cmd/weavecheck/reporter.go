package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Reporter is a live status line a campaign reports progress through while
// it runs, falling back to plain newline-terminated status lines when
// stdout isn't a terminal.
type Reporter interface {
	io.Writer
	StartStatus()
	Status(format string, a ...interface{})
	StopStatus()
}

// NewStdoutReporter picks a VT100 live-updating reporter when stdout is a
// terminal, a dumb line-at-a-time one otherwise.
func NewStdoutReporter() Reporter {
	if os.Getenv("TERM") == "" || os.Getenv("TERM") == "dumb" || !term.IsTerminal(int(os.Stdout.Fd())) {
		return &ReporterDumb{w: os.Stdout}
	}
	return &ReporterVT100{w: os.Stdout}
}

type ReporterDumb struct {
	w io.Writer
}

func (r *ReporterDumb) StartStatus() {}
func (r *ReporterDumb) StopStatus()  {}
func (r *ReporterDumb) Status(format string, a ...interface{}) {
	fmt.Fprintf(r.w, format, a...)
	r.w.Write([]byte{'\n'})
}
func (r *ReporterDumb) Write(data []byte) (int, error) {
	return r.w.Write(data)
}

type ReporterVT100 struct {
	w      io.Writer
	stop   chan struct{}
	update chan func() string
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func (r *ReporterVT100) StartStatus() {
	r.stop = make(chan struct{})
	r.update = make(chan func() string)
	r.wg.Add(1)
	go r.run()
}

func (r *ReporterVT100) StopStatus() {
	close(r.stop)
	r.wg.Wait()
}

func (r *ReporterVT100) Status(format string, a ...interface{}) {
	r.update <- func() string {
		return fmt.Sprintf(format, a...)
	}
}

const (
	resetLine = "\r\x1b[2K"
	wrapOff   = "\x1b[?7l"
	moveEOL   = "\x1b[999C"
	wrapOn    = "\x1b[?7h"
)

func (r *ReporterVT100) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s%s", resetLine, wrapOn)
	return r.w.Write(data)
}

func (r *ReporterVT100) run() {
	const ticker = "-\\|/"
	const minUpdate = time.Second / 10

	i := 0
	status := func() string { return "" }
	tick := time.NewTicker(time.Second / 2)
	inhibit, pending := false, false
	deinhibit := time.NewTimer(0)
	defer func() {
		tick.Stop()
		r.mu.Lock()
		fmt.Fprintf(r.w, "%s%s%s%s\n", resetLine, wrapOff, status(), wrapOn)
		r.mu.Unlock()
		r.wg.Done()
	}()

	for {
		r.mu.Lock()
		fmt.Fprintf(r.w, "%s%s%s%s%c", resetLine, wrapOff, status(), moveEOL, ticker[i%len(ticker)])
		r.mu.Unlock()
		pending = false

	ignore:
		select {
		case <-tick.C:
			i++

		case status = <-r.update:
			if inhibit {
				pending = true
				goto ignore
			}
			inhibit = true
			deinhibit.Reset(minUpdate)

		case <-deinhibit.C:
			inhibit = false
			if !pending {
				goto ignore
			}

		case <-r.stop:
			return
		}
	}
}
