package export

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handle identifies an export started through a Manager.
type Handle string

type job struct {
	session  *Session
	cancel   context.CancelFunc
	done     chan struct{}
	artifact *Artifact
	err      error
}

// Manager runs export sessions in the background and tracks them by handle.
type Manager struct {
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[Handle]*job
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{logger: logger, jobs: make(map[Handle]*job)}
}

// Start runs the session in a goroutine. The export stops when ctx is
// cancelled or Cancel is called with the returned handle.
func (m *Manager) Start(ctx context.Context, s *Session) Handle {
	h := Handle(uuid.NewString())
	ctx, cancel := context.WithCancel(ctx)
	j := &job{session: s, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.jobs[h] = j
	m.mu.Unlock()

	go func() {
		defer close(j.done)
		defer cancel()
		j.artifact, j.err = s.Run(ctx)
		if j.err != nil {
			m.logger.Warn("export failed", "handle", h, "error", j.err)
			return
		}
		m.logger.Info("export completed", "handle", h, "frames", j.artifact.Frames, "bytes", len(j.artifact.Data))
	}()
	return h
}

func (m *Manager) get(h Handle) (*job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return j, nil
}

// Progress returns the completion percentage, 0 to 100.
func (m *Manager) Progress(h Handle) (float64, error) {
	j, err := m.get(h)
	if err != nil {
		return 0, err
	}
	return j.session.Progress() * 100, nil
}

func (m *Manager) Phase(h Handle) (Phase, error) {
	j, err := m.get(h)
	if err != nil {
		return PhaseIdle, err
	}
	return j.session.Phase(), nil
}

// Cancel aborts a running export. Cancelling a finished export is a no-op.
func (m *Manager) Cancel(h Handle) error {
	j, err := m.get(h)
	if err != nil {
		return err
	}
	j.cancel()
	return nil
}

// Wait blocks until the export finishes and returns its outcome.
func (m *Manager) Wait(ctx context.Context, h Handle) (*Artifact, error) {
	j, err := m.get(h)
	if err != nil {
		return nil, err
	}
	select {
	case <-j.done:
		return j.artifact, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Forget drops a finished export from the manager.
func (m *Manager) Forget(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[h]; ok {
		select {
		case <-j.done:
			delete(m.jobs, h)
		default:
		}
	}
}
