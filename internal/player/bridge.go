package player

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/morpheus1988wer/HertzBridge/internal/errors"
	"github.com/morpheus1988wer/HertzBridge/internal/logging"
)

// MetadataProvider answers "what is playing right now". The call may block
// on inter-process communication; callers bound it with the context and
// treat overruns as evidence the player is dying.
type MetadataProvider interface {
	// CurrentTrack returns the currently playing track, or nil when
	// nothing is playing or the player is unavailable.
	CurrentTrack(ctx context.Context) (*Track, error)
}

// CommandBridge queries the player by running an external command that
// prints the current track as a JSON object on stdout. An empty output
// means nothing is playing.
type CommandBridge struct {
	command string
	log     *slog.Logger
}

// NewCommandBridge creates a bridge around the given shell command.
func NewCommandBridge(command string) *CommandBridge {
	return &CommandBridge{
		command: command,
		log:     logging.ForService("player"),
	}
}

// CurrentTrack runs the query command and parses its output.
func (b *CommandBridge) CurrentTrack(ctx context.Context) (*Track, error) {
	if b.command == "" {
		return nil, errors.Newf("player query command is not configured").
			Component("player").
			Category(errors.CategoryConfiguration).
			Build()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", b.command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			// Surface the context error so callers can tell a timeout
			// apart from a command failure.
			return nil, ctx.Err()
		}
		return nil, errors.New(err).
			Component("player").
			Category(errors.CategoryPlayerBridge).
			Context("stderr", strings.TrimSpace(stderr.String())).
			Build()
	}

	output := strings.TrimSpace(stdout.String())
	if output == "" {
		// Nothing playing.
		return nil, nil
	}

	var track Track
	if err := json.Unmarshal([]byte(output), &track); err != nil {
		return nil, errors.New(err).
			Component("player").
			Category(errors.CategoryPlayerBridge).
			Context("operation", "parse_track").
			Build()
	}
	if track.Name == "" {
		b.log.Debug("query returned a track without a name, treating as idle")
		return nil, nil
	}
	return &track, nil
}
