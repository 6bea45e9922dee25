// Package history records completed sessions to an append-only log in
// the state directory, one JSON object per line. The log backs the
// daily summary shown in the footer and the -history flag.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

const fileName = "history.jsonl"

// Entry is one completed session.
type Entry struct {
	Mode         timer.Mode `json:"mode"`
	EndedAtMS    int64      `json:"ended_at_ms"`
	DurationS    int64      `json:"duration_s"`
	SessionCount int        `json:"session_count"`
}

// EndedAt returns the completion instant.
func (e Entry) EndedAt() time.Time { return time.UnixMilli(e.EndedAtMS) }

// Summary aggregates the focus sessions completed on one day.
type Summary struct {
	FocusSessions int
	FocusMinutes  int
}

// Log is the on-disk session log. Appends are serialized; failures are
// logged and swallowed so a full disk never stalls the timer.
type Log struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// Open returns a Log rooted at stateDir. The file is created lazily on
// first append.
func Open(stateDir string, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Log{path: filepath.Join(stateDir, fileName), logger: logger}
}

// Append records one completed session. The log is shared across
// instances and every replica completes the same session independently,
// so an entry matching the most recent one within the session's own
// duration is a sibling's write and is skipped.
func (l *Log) Append(mode timer.Mode, duration time.Duration, sessionCount int, endedAt time.Time) {
	entry := Entry{
		Mode:         mode,
		EndedAtMS:    endedAt.UnixMilli(),
		DurationS:    int64(duration / time.Second),
		SessionCount: sessionCount,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastEntry(); ok && isDuplicate(last, entry, duration) {
		l.logger.Debug("session already recorded by a sibling instance",
			"mode", mode, "session", sessionCount)
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Warn("marshal history entry", "error", err)
		return
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.logger.Warn("open history log", "error", err)
		return
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s\n", data); err != nil {
		l.logger.Warn("append history entry", "error", err)
	}
}

// lastEntry returns the most recent entry, if any. Caller holds l.mu.
func (l *Log) lastEntry() (Entry, bool) {
	entries, err := l.readAll()
	if err != nil || len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

// isDuplicate reports whether next records the same completion as last:
// identical mode and session count, ended within one session duration of
// each other. A genuine repeat of the same (mode, count) pair cannot
// finish faster than the session itself runs.
func isDuplicate(last, next Entry, window time.Duration) bool {
	if last.Mode != next.Mode || last.SessionCount != next.SessionCount {
		return false
	}
	gap := next.EndedAt().Sub(last.EndedAt())
	if gap < 0 {
		gap = -gap
	}
	return gap < window
}

// Entries reads the whole log, oldest first. Malformed lines are
// skipped with a warning rather than poisoning the read.
func (l *Log) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readAll()
}

func (l *Log) readAll() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			l.logger.Warn("malformed history line skipped", "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scan history log: %w", err)
	}
	return entries, nil
}

// Today summarizes the focus sessions completed on the same calendar
// day as now, in now's location.
func (l *Log) Today(now time.Time) Summary {
	entries, err := l.Entries()
	if err != nil {
		l.logger.Warn("read history for summary", "error", err)
		return Summary{}
	}

	y, m, d := now.Date()
	var sum Summary
	for _, e := range entries {
		if e.Mode != timer.ModeFocus {
			continue
		}
		ey, em, ed := e.EndedAt().In(now.Location()).Date()
		if ey != y || em != m || ed != d {
			continue
		}
		sum.FocusSessions++
		sum.FocusMinutes += int(e.DurationS / 60)
	}
	return sum
}

// Prune drops entries older than retention, rewriting the log
// atomically. A zero retention disables pruning.
func (l *Log) Prune(retention time.Duration, now time.Time) error {
	if retention <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAll()
	if err != nil {
		return err
	}
	cutoff := now.Add(-retention)

	kept := entries[:0]
	for _, e := range entries {
		if e.EndedAt().After(cutoff) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}

	var buf strings.Builder
	for _, e := range kept {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal history entry: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".history-*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(buf.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write pruned history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close pruned history: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace history log: %w", err)
	}

	l.logger.Info("history pruned", "kept", len(kept), "dropped", len(entries)-len(kept))
	return nil
}
