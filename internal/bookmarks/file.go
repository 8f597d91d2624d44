package bookmarks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nikbrunner/bmsync/internal/logging"
	"github.com/nikbrunner/bmsync/internal/model"
)

// FileConfig configures a FileService.
type FileConfig struct {
	Path         string
	Debounce     time.Duration // default 200ms
	PollInterval time.Duration // default 2s
	ForcePoll    bool
	Logger       *zerolog.Logger
}

// FileService serves the tree stored in a bookmarks file written by the
// browser. Every time the file changes it is read again and the difference
// to the previous tree is reported as notifications. The file is the only
// writer, so Create and Update are refused.
type FileService struct {
	cfg   FileConfig
	log   zerolog.Logger
	notes *notifier

	mu      sync.Mutex
	root    *model.Node
	watcher *Watcher
}

// NewFileService reads the file once.
func NewFileService(cfg FileConfig) (*FileService, error) {
	root, err := LoadFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	return &FileService{
		cfg:   cfg,
		log:   logging.OrNop(cfg.Logger).With().Str("component", "places").Str("path", cfg.Path).Logger(),
		notes: newNotifier(),
		root:  root,
	}, nil
}

// GetTree returns a copy of the tree last read from the file.
func (s *FileService) GetTree(ctx context.Context) (*model.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root.Clone(), nil
}

// Create always fails: the file is only read.
func (s *FileService) Create(ctx context.Context, details model.CreateDetails) (*model.Node, error) {
	return nil, ErrReadOnly
}

// Update always fails: the file is only read.
func (s *FileService) Update(ctx context.Context, id string, info model.ChangeInfo) (*model.Node, error) {
	return nil, ErrReadOnly
}

// Notifications returns the channel diffs between reloads are sent on.
func (s *FileService) Notifications() <-chan model.Notification {
	return s.notes.out
}

// Reload reads the file again and emits the notifications that lead from
// the previous tree to the new one. It returns how many were emitted. A
// file that cannot be read or parsed leaves the current tree in place.
func (s *FileService) Reload(ctx context.Context) (int, error) {
	root, err := LoadFile(s.cfg.Path)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if root.ID != s.root.ID {
		s.log.Warn().Str("old_root", s.root.ID).Str("new_root", root.ID).Msg("root id changed, notifications skipped")
		s.root = root
		return 0, nil
	}
	notes := Diff(s.root, root)
	s.root = root
	s.notes.emit(notes...)
	return len(notes), nil
}

// Start watches the file and reloads it after every change until ctx ends
// or Close is called.
func (s *FileService) Start(ctx context.Context) error {
	w, err := NewWatcher(s.cfg.Path,
		WithDebounce(s.cfg.Debounce),
		WithPollInterval(s.cfg.PollInterval),
		WithForcePoll(s.cfg.ForcePoll),
		WithOnChange(func() {
			n, err := s.Reload(ctx)
			if err != nil {
				s.log.Warn().Err(err).Msg("reload failed")
				return
			}
			s.log.Debug().Int("notifications", n).Msg("reloaded")
		}),
		WithOnError(func(err error) {
			s.log.Warn().Err(err).Msg("watch error")
		}),
	)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()
	s.log.Info().Bool("polling", w.IsPolling()).Msg("watching")
	return nil
}

// Close stops watching and closes the notification channel.
func (s *FileService) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		w.Stop()
	}
	s.notes.close()
	return nil
}
