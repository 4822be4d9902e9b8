// Package ui renders a live pipeline view of one turn's tick-by-tick demon
// activity to stdout, animating the kernel's turn/tick/demon/action event
// vocabulary as it streams off the bus.
package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jcarlsen/socratic-kernel/internal/bus"
)

const (
	ansiReset  = "\033[0m"
	ansiDim    = "\033[2m"
	ansiCyan   = "\033[36m"
	ansiYellow = "\033[33m"
	ansiGreen  = "\033[32m"
)

var demonEmoji = map[string]string{
	"parse":     "📝",
	"relate":    "🔗",
	"infer":     "🧮",
	"decompose": "🧩",
	"analogize": "🪞",
	"question":  "❓",
	"learn":     "💾",
}

var spinRunes = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

// Display renders a live pipeline view of a turn's demon activity. It reads
// from a dedicated bus tap and animates a spinner between events.
type Display struct {
	tap     <-chan bus.Event
	mu      sync.Mutex
	status  string
	started time.Time
	inTurn  bool
	spinIdx int
}

// New creates a Display reading from tap (pass bus.Bus.NewTap()).
func New(tap <-chan bus.Event) *Display {
	return &Display{tap: tap}
}

// Run is the display's main goroutine: it prints one flow line per event
// and animates a spinner showing the most recent status between events.
// All terminal writes happen on this single goroutine.
func (d *Display) Run(ctx context.Context) {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Print("\r\033[K")
			return

		case evt, ok := <-d.tap:
			if !ok {
				return
			}
			switch evt.Kind {
			case bus.EventTurnBegin:
				d.startTurn(evt.Detail)
			case bus.EventTickBegin:
				fmt.Print("\r\033[K")
				fmt.Printf("  %stick %d%s\n", ansiDim, evt.Tick, ansiReset)
			case bus.EventDemonFired:
				fmt.Print("\r\033[K")
				d.printFlow(evt)
				d.setStatus(fmt.Sprintf("%s running...", evt.Demon))
			case bus.EventActionTaken:
				fmt.Print("\r\033[K")
				d.printAction(evt)
			case bus.EventTurnEnd:
				d.endTurn()
			}

		case <-ticker.C:
			d.mu.Lock()
			inTurn, status := d.inTurn, d.status
			d.mu.Unlock()
			if !inTurn {
				continue
			}
			frame := spinRunes[d.spinIdx%len(spinRunes)]
			d.spinIdx++
			fmt.Printf("\r\033[K%s%s%s %s", ansiCyan, string(frame), ansiReset, status)
		}
	}
}

func (d *Display) startTurn(text string) {
	d.mu.Lock()
	d.inTurn = true
	d.mu.Unlock()
	d.started = time.Now()
	d.setStatus("parsing...")
	fmt.Printf("\n%s┌─── turn: %s %s%s\n", ansiDim, strings.TrimSpace(clip(text, 50)), strings.Repeat("─", 10), ansiReset)
}

func (d *Display) endTurn() {
	d.mu.Lock()
	d.inTurn = false
	d.mu.Unlock()
	elapsed := time.Since(d.started).Round(time.Millisecond)
	fmt.Printf("\r\033[K%s└─── %v %s%s\n", ansiDim, elapsed, strings.Repeat("─", 35), ansiReset)
}

func (d *Display) setStatus(s string) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

func (d *Display) printFlow(evt bus.Event) {
	emoji, ok := demonEmoji[evt.Demon]
	if !ok {
		emoji = "•"
	}
	fmt.Printf("  %s%s %s%s fired\n", ansiCyan, emoji, evt.Demon, ansiReset)
}

func (d *Display) printAction(evt bus.Event) {
	color := ansiYellow
	if evt.Detail == "respond" {
		color = ansiGreen
	}
	fmt.Printf("  %s  %s──[%s]%s\n", ansiDim, color, evt.Detail, ansiReset)
}

// clip truncates s to at most n characters, appending "…" if trimmed.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
