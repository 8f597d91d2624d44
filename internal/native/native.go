// Package native talks to the native companion application that styles
// bookmark folders outside the browser. Messages follow the browser's native
// messaging framing: a length-prefixed JSON object per message.
package native

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/nikbrunner/bmsync/internal/logging"
)

// Recognized actions.
const (
	ActionPing         = "pbnative_ping"
	ActionUpdateFolder = "update_folder"
)

// Message is a request or reply.
type Message struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the reply data is the string "true".
func (m Message) OK() bool {
	var s string
	if err := json.Unmarshal(m.Data, &s); err != nil {
		return false
	}
	return s == "true"
}

// FolderStyle is what the companion needs to restyle a folder.
type FolderStyle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

type folderPayload struct {
	Folder FolderStyle `json:"folder"`
}

// Channel is the best-effort styling channel. Both calls report success
// only; failures are logged by the implementation.
type Channel interface {
	Ping(ctx context.Context) bool
	UpdateFolder(ctx context.Context, style FolderStyle) bool
}

// Config configures a Messenger.
type Config struct {
	Command string
	Args    []string
	Timeout time.Duration // per round trip, default 5s
	Logger  *zerolog.Logger
}

// Messenger runs the companion once per message, writes the request to its
// stdin and reads the reply from its stdout.
type Messenger struct {
	command string
	args    []string
	timeout time.Duration
	log     zerolog.Logger
}

// New returns a Messenger for cfg, or Disabled when no command is set.
func New(cfg Config) Channel {
	if cfg.Command == "" {
		return Disabled{}
	}
	return NewMessenger(cfg)
}

// NewMessenger creates a Messenger.
func NewMessenger(cfg Config) *Messenger {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Messenger{
		command: cfg.Command,
		args:    cfg.Args,
		timeout: timeout,
		log:     logging.OrNop(cfg.Logger).With().Str("component", "native").Logger(),
	}
}

// Send performs one round trip. The reply must echo the request action.
func (m *Messenger) Send(ctx context.Context, action string, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("native: encode %s: %w", action, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.command, m.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Message{}, fmt.Errorf("native: %s: %w", action, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Message{}, fmt.Errorf("native: %s: %w", action, err)
	}
	if err := cmd.Start(); err != nil {
		return Message{}, fmt.Errorf("native: start companion: %w", err)
	}

	writeErr := WriteMessage(stdin, Message{Action: action, Data: raw})
	stdin.Close()

	var reply Message
	readErr := ReadMessage(stdout, &reply)
	waitErr := cmd.Wait()

	switch {
	case writeErr != nil:
		return Message{}, writeErr
	case readErr != nil:
		return Message{}, readErr
	case waitErr != nil:
		return Message{}, fmt.Errorf("native: companion: %w", waitErr)
	}
	if reply.Action != action {
		return Message{}, fmt.Errorf("native: reply to %q carries action %q", action, reply.Action)
	}
	return reply, nil
}

// Ping checks that the companion is installed and answering.
func (m *Messenger) Ping(ctx context.Context) bool {
	reply, err := m.Send(ctx, ActionPing, "ping")
	if err != nil {
		m.log.Warn().Err(err).Msg("companion not reachable")
		return false
	}
	return reply.OK()
}

// UpdateFolder asks the companion to restyle a folder.
func (m *Messenger) UpdateFolder(ctx context.Context, style FolderStyle) bool {
	reply, err := m.Send(ctx, ActionUpdateFolder, folderPayload{Folder: style})
	if err != nil {
		m.log.Warn().Err(err).Str("folder", style.ID).Msg("folder style not delivered")
		return false
	}
	if !reply.OK() {
		m.log.Warn().Str("folder", style.ID).RawJSON("data", orNull(reply.Data)).Msg("companion refused folder style")
		return false
	}
	return true
}

func orNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte("null")
	}
	return raw
}

// Disabled is the channel used when no companion is configured.
type Disabled struct{}

// Ping and UpdateFolder always report false.
func (Disabled) Ping(context.Context) bool                     { return false }
func (Disabled) UpdateFolder(context.Context, FolderStyle) bool { return false }
