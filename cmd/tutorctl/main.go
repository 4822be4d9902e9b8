// Command tutorctl is a REPL front end for the tutoring kernel, wiring
// readline + godotenv + a cache directory around a single Kernel instance.
// Terminal ergonomics (history file, debug log redirected to a file,
// one-shot vs REPL mode) are handled here.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/jcarlsen/socratic-kernel/internal/config"
	"github.com/jcarlsen/socratic-kernel/internal/ui"
	"github.com/jcarlsen/socratic-kernel/kernel"
)

func main() {
	config.LoadDotEnv(".env")

	homeDir, _ := os.UserHomeDir()
	cacheDir := filepath.Join(homeDir, ".cache", "tutorctl")
	_ = os.MkdirAll(cacheDir, 0755)

	if f, err := os.OpenFile(filepath.Join(cacheDir, "debug.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))
		defer f.Close()
	}

	cfg := config.FromEnv()
	k := kernel.New(cfg)
	if err := k.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "tutorctl: init failed: %v\n", err)
		os.Exit(1)
	}
	defer k.Close()

	if cfg.DebugTrace {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		disp := ui.New(k.Tap())
		go disp.Run(ctx)
	}

	if len(os.Args) > 1 && os.Args[1] != "" {
		runOneShot(k, strings.Join(os.Args[1:], " "))
		return
	}
	runREPL(k, cacheDir)
}

func runOneShot(k *kernel.Kernel, input string) {
	result, err := k.Process(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tutorctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(result.Text)
}

func runREPL(k *kernel.Kernel, cacheDir string) {
	fmt.Println("\033[1m\033[36mtutorctl\033[0m — Socratic tutoring kernel  \033[2m(exit/Ctrl-D to quit | /stats /demons /save /load)\033[0m")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[36m>\033[0m ",
		HistoryFile:       filepath.Join(cacheDir, "history"),
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init error: %v\n", err)
		return
	}
	defer rl.Close()

	statePath := filepath.Join(cacheDir, "state.json")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		switch {
		case input == "exit" || input == "quit":
			return
		case input == "/stats":
			printStats(k)
			continue
		case input == "/demons":
			printDemons(k)
			continue
		case input == "/save":
			saveState(k, statePath)
			continue
		case input == "/load":
			loadState(k, statePath)
			continue
		}

		result, err := k.Process(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(result.Text)
	}
}

func printStats(k *kernel.Kernel) {
	st, err := k.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Printf("memory: %d slots (%d focused), %d ticks\n", st.Memory.Slots, st.Memory.Focused, st.Memory.TotalTicks)
	fmt.Printf("graph:  %d nouns, %d relations\n", st.Graph.Nouns, st.Graph.Relations)
	for typ, n := range st.Graph.Types {
		fmt.Printf("        %-12s %d\n", typ, n)
	}
	fmt.Printf("demons: %d registered, %d fired this session\n", st.Demons.Registered, st.Demons.TotalFired)
}

func printDemons(k *kernel.Kernel) {
	for _, d := range k.ListDemons() {
		fmt.Printf("  %-10s %s\n", d.ID, d.Description)
	}
}

func saveState(k *kernel.Kernel, path string) {
	blob, err := k.SaveState()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if err := os.WriteFile(path, blob, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Printf("saved %s bytes to %s\n", strconv.Itoa(len(blob)), path)
}

func loadState(k *kernel.Kernel, path string) {
	blob, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if err := k.LoadState(blob); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	fmt.Println("state loaded")
}
