// focus-pulse is a terminal Pomodoro timer.
//
// It keeps a drift-free countdown anchored to wall-clock timestamps,
// synchronizes state across concurrently running instances on the same
// machine, and survives restarts by snapshotting active sessions.
//
// Usage:
//
//	focus-pulse [flags]
//
// Flags:
//
//	-config string  Path to configuration file (default: ~/.config/focus-pulse/config.toml)
//	-status         Print a one-line status summary and exit
//	-history        Print the completed-session history and exit
//	-reset          Clear persisted timer state and exit
//	-no-sync        Disable cross-instance synchronization
//	-verbose        Enable verbose logging
//	-version        Print version and exit
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/alarm"
	"gitlab.com/tinyland/lab/focus-pulse/pkg/config"
	"gitlab.com/tinyland/lab/focus-pulse/pkg/history"
	"gitlab.com/tinyland/lab/focus-pulse/pkg/snapshot"
	"gitlab.com/tinyland/lab/focus-pulse/pkg/syncbus"
	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
	"gitlab.com/tinyland/lab/focus-pulse/pkg/tui"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showStatus  = flag.Bool("status", false, "Print a one-line status summary and exit")
		showHistory = flag.Bool("history", false, "Print the completed-session history and exit")
		doReset     = flag.Bool("reset", false, "Clear persisted timer state and exit")
		noSync      = flag.Bool("no-sync", false, "Disable cross-instance synchronization")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("focus-pulse %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	stateDir, err := config.StateDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare state directory: %v\n", err)
		os.Exit(1)
	}
	runtimeDir, err := config.RuntimeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare runtime directory: %v\n", err)
		os.Exit(1)
	}

	logger, logFile, err := setupLogging(stateDir, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	settings := cfg.Settings()
	pid := os.Getpid()
	snaps := snapshot.NewManager(stateDir, runtimeDir, pid, logger)

	if *doReset {
		snaps.Clear()
		fmt.Println("timer state cleared")
		os.Exit(0)
	}

	if *showStatus {
		printStatus(snaps, settings)
		os.Exit(0)
	}

	var log *history.Log
	if cfg.History.Enabled {
		log = history.Open(stateDir, logger)
		if err := log.Prune(cfg.History.Retention.Duration, time.Now()); err != nil {
			logger.Warn("prune history", "error", err)
		}
	}

	if *showHistory {
		printHistory(log)
		os.Exit(0)
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "focus-pulse requires an interactive terminal (try -status or -history)")
		os.Exit(1)
	}

	// First run: write the defaults out so the user has a file to edit.
	if *configPath == "" {
		if _, err := os.Stat(config.DefaultPath()); os.IsNotExist(err) {
			if err := config.Save(cfg); err != nil {
				logger.Warn("write default config", "error", err)
			}
		}
	}

	machineOpts := []timer.Option{}
	if recovered, ok := snaps.Recover(settings, time.Now()); ok {
		logger.Info("recovered timer state",
			"mode", recovered.Mode, "status", recovered.Status, "remaining", recovered.Remaining)
		machineOpts = append(machineOpts, timer.WithState(recovered))
	}
	machine := timer.NewMachine(settings, machineOpts...)

	ringer := alarm.NewRinger(settings.SoundEnabled, logger)
	notifier := alarm.NewNotifier(logger)

	// The bus is opened after the engine exists so inbound events always
	// have somewhere to go; the publish hook reaches the bus lazily since
	// local transitions cannot happen before the TUI starts.
	var bus *syncbus.Bus
	hooks := timer.Hooks{
		Persist: func(st timer.State) { snaps.Save(st, time.Now()) },
		Discard: snaps.Clear,
		OnComplete: func(c timer.Completion) {
			logger.Info("session complete",
				"mode", c.Completed, "next", c.Next, "sessions", c.SessionCount)
			ringer.Ring()
			notifier.Announce(c.Completed)
			if log != nil && c.Completed == timer.ModeFocus {
				log.Append(c.Completed, settings.Duration(c.Completed), c.SessionCount, time.Now())
			}
		},
	}
	if !*noSync {
		hooks.Publish = func(ev timer.Event) {
			if bus != nil {
				bus.Publish(ev)
			}
		}
	}

	engine := timer.NewEngine(machine, hooks, logger)
	if !*noSync {
		bus = syncbus.Open(runtimeDir, pid, engine.ApplyRemote, logger)
	}
	defer func() {
		engine.Close()
		if bus != nil {
			bus.Close()
		}
		snaps.Close()
	}()

	model := tui.New(engine, settings, notifier, log)
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
	)
	if _, err := p.Run(); err != nil {
		logger.Error("tui error", "error", err)
		fmt.Fprintf(os.Stderr, "focus-pulse: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging writes structured logs to a file in the state directory.
// Stderr stays clean for the TUI.
func setupLogging(stateDir string, verbose bool) (*slog.Logger, *os.File, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logFile, err := os.OpenFile(filepath.Join(stateDir, "focus-pulse.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))
	return logger, logFile, nil
}

// printStatus emits a one-line summary suitable for prompt segments.
func printStatus(snaps *snapshot.Manager, settings timer.Settings) {
	st, ok := snaps.Recover(settings, time.Now())
	if !ok {
		fmt.Println("idle")
		return
	}
	remaining := timer.Remaining(st, settings.Duration(st.Mode), time.Now())
	mins := int(remaining / time.Minute)
	secs := int(remaining/time.Second) % 60
	switch st.Status {
	case timer.StatusPaused:
		fmt.Printf("%s paused %02d:%02d\n", st.Mode, mins, secs)
	default:
		fmt.Printf("%s %02d:%02d\n", st.Mode, mins, secs)
	}
}

// printHistory dumps the session log, newest last, plus a today summary.
func printHistory(log *history.Log) {
	if log == nil {
		fmt.Println("history is disabled in the configuration")
		return
	}
	entries, err := log.Entries()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read history: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("no sessions recorded yet")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %-12s %3dm  session %d\n",
			e.EndedAt().Local().Format("2006-01-02 15:04"),
			e.Mode.Title(), e.DurationS/60, e.SessionCount)
	}
	sum := log.Today(time.Now())
	fmt.Printf("\ntoday: %d focus sessions, %d minutes\n", sum.FocusSessions, sum.FocusMinutes)
}
