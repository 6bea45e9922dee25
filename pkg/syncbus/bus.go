// Package syncbus broadcasts timer transitions between concurrently
// running focus-pulse instances on the same machine.
//
// Transport: every instance listens on its own Unix domain socket in a
// shared runtime directory and publishes by dialing each sibling socket
// and writing one JSON line. Delivery is fire-and-forget: no
// acknowledgement, no retry, no ordering guarantee beyond the receiver's
// last-writer-wins filter. If the transport cannot be set up the bus
// degrades to a disabled no-op and each instance stays locally
// authoritative.
package syncbus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

const (
	sockSuffix  = ".sock"
	dialTimeout = 250 * time.Millisecond
)

// Handler receives events published by sibling instances.
type Handler func(timer.Event)

// Bus is one instance's endpoint on the broadcast channel.
type Bus struct {
	dir      string
	selfPath string
	handler  Handler
	logger   *slog.Logger

	listener net.Listener
	disabled bool

	wg   sync.WaitGroup
	done chan struct{}
}

// Open joins the broadcast channel rooted at dir, listening on a socket
// named after pid. It never returns an error: when the listener cannot
// be created the returned bus is disabled and Publish is a no-op, per
// the degrade-silently contract.
func Open(dir string, pid int, handler Handler, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Bus{
		dir:      dir,
		selfPath: filepath.Join(dir, strconv.Itoa(pid)+sockSuffix),
		handler:  handler,
		logger:   logger,
		done:     make(chan struct{}),
	}

	// Remove a stale socket left by a previous process with this pid.
	os.Remove(b.selfPath)

	ln, err := net.Listen("unix", b.selfPath)
	if err != nil {
		b.logger.Warn("sync bus unavailable, running single-instance", "error", err)
		b.disabled = true
		return b
	}
	if err := os.Chmod(b.selfPath, 0o600); err != nil {
		ln.Close()
		os.Remove(b.selfPath)
		b.logger.Warn("sync bus socket permissions", "error", err)
		b.disabled = true
		return b
	}

	b.listener = ln
	b.wg.Add(1)
	go b.acceptLoop()
	return b
}

// Disabled reports whether the bus degraded to single-instance mode.
func (b *Bus) Disabled() bool { return b.disabled }

// Publish sends an event to every sibling instance. The fan-out runs
// on its own goroutine so the caller never waits on sibling dials.
// Errors per sibling are logged at debug level and otherwise ignored;
// sockets whose owner process is gone are cleaned up opportunistically.
func (b *Bus) Publish(ev timer.Event) {
	if b.disabled {
		return
	}
	select {
	case <-b.done:
		return
	default:
	}

	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("marshal sync event", "error", err)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.fanOut(data)
	}()
}

func (b *Bus) fanOut(data []byte) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		b.logger.Debug("scan sync bus directory", "error", err)
		return
	}

	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, sockSuffix) {
			continue
		}
		path := filepath.Join(b.dir, name)
		if path == b.selfPath {
			continue
		}
		if pid, ok := peerPID(name); ok && !pidAlive(pid) {
			// The owning process is gone; reap its socket.
			os.Remove(path)
			continue
		}
		b.sendTo(path, data)
	}
}

// Close shuts down the listener, waits for in-flight publishes, and
// removes the socket file.
func (b *Bus) Close() {
	select {
	case <-b.done:
		return
	default:
	}
	close(b.done)

	if b.listener != nil {
		b.listener.Close()
	}
	b.wg.Wait()
	os.Remove(b.selfPath)
}

func (b *Bus) acceptLoop() {
	defer b.wg.Done()
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			select {
			case <-b.done:
				return
			default:
				// Transient error, continue accepting.
				continue
			}
		}
		b.wg.Add(1)
		go b.handleConn(conn)
	}
}

// handleConn reads newline-delimited JSON events from one sender.
func (b *Bus) handleConn(conn net.Conn) {
	defer b.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var ev timer.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			b.logger.Debug("malformed sync event dropped", "error", err)
			continue
		}
		if b.handler != nil {
			b.handler(ev)
		}
	}
}

// sendTo delivers one event to one sibling, best-effort.
func (b *Bus) sendTo(path string, data []byte) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		b.logger.Debug("dial sibling", "socket", path, "error", err)
		return
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		b.logger.Debug("write to sibling", "socket", path, "error", err)
	}
}

// peerPID extracts the owning pid from a socket file name.
func peerPID(name string) (int, bool) {
	pid, err := strconv.Atoi(strings.TrimSuffix(name, sockSuffix))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// pidAlive reports whether a process with the given pid exists.
func pidAlive(pid int) bool {
	alive, err := process.PidExists(int32(pid))
	if err != nil {
		// If liveness cannot be determined, assume alive and let the
		// dial attempt decide.
		return true
	}
	return alive
}
