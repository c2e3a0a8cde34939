// Package loghints subscribes to a diagnostic log stream and extracts
// timestamped sample-rate hints from it. Hints are a low-trust, possibly
// stale signal; filtering and stability tracking are the engine's job,
// this package only parses and forwards.
package loghints

import (
	"bufio"
	"context"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/morpheus1988wer/HertzBridge/internal/errors"
	"github.com/morpheus1988wer/HertzBridge/internal/logging"
)

// Hint is one observed sample-rate announcement.
type Hint struct {
	Rate float64   // sample rate in Hz
	At   time.Time // when the announcement was observed
}

// Monitor is a push-based hint source.
type Monitor interface {
	Start(ctx context.Context) error
	Stop()
}

// StreamMonitor runs a long-lived diagnostic stream command and scans its
// stdout line by line for sample-rate announcements.
type StreamMonitor struct {
	command string
	re      *regexp.Regexp
	onHint  func(Hint)
	log     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamMonitor creates a monitor around the given shell command. The
// pattern must contain one capture group matching the announced rate.
func NewStreamMonitor(command, pattern string, onHint func(Hint)) (*StreamMonitor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.New(err).
			Component("loghints").
			Category(errors.CategoryConfiguration).
			Context("pattern", pattern).
			Build()
	}
	return &StreamMonitor{
		command: command,
		re:      re,
		onHint:  onHint,
		log:     logging.ForService("loghints"),
	}, nil
}

// Start launches the stream command and begins scanning. Returns once the
// command has started; scanning continues in the background until Stop or
// context cancellation.
func (m *StreamMonitor) Start(ctx context.Context) error {
	if m.command == "" {
		return errors.Newf("hint stream command is not configured").
			Component("loghints").
			Category(errors.CategoryConfiguration).
			Build()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return errors.Newf("hint monitor already started").
			Component("loghints").
			Category(errors.CategoryState).
			Build()
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, "sh", "-c", m.command)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return errors.New(err).
			Component("loghints").
			Category(errors.CategoryLogHints).
			Context("operation", "stdout_pipe").
			Build()
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return errors.New(err).
			Component("loghints").
			Category(errors.CategoryLogHints).
			Context("operation", "start_stream").
			Build()
	}
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		scanner := bufio.NewScanner(stdout)
		// Diagnostic lines can be long.
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if rate, ok := ParseRate(m.re, scanner.Text()); ok {
				m.onHint(Hint{Rate: rate, At: time.Now()})
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			m.log.Warn("hint stream read failed", "error", err)
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			m.log.Warn("hint stream command exited", "error", err)
		}
	}()

	m.log.Info("hint stream started", "command", m.command)
	return nil
}

// Stop terminates the stream command and waits for the scanner goroutine.
func (m *StreamMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// ParseRate extracts a sample rate in Hz from one diagnostic line using
// the given pattern. Values below 1000 are read as kHz, the form some
// players log ("44.1 kHz"), and scaled accordingly.
func ParseRate(re *regexp.Regexp, line string) (float64, bool) {
	matches := re.FindStringSubmatch(line)
	if len(matches) < 2 {
		return 0, false
	}
	rate, err := strconv.ParseFloat(matches[1], 64)
	if err != nil || rate <= 0 {
		return 0, false
	}
	if rate < 1000 {
		rate *= 1000
	}
	return rate, true
}
