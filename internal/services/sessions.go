package services

import (
	"context"
	"sync"
	"time"

	"github.com/Conceptual-Machines/flipbook-api/internal/config"
	"github.com/Conceptual-Machines/flipbook-api/internal/logger"
	"github.com/Conceptual-Machines/flipbook-api/internal/storyboard"
	"github.com/patrickmn/go-cache"
)

// SessionService keeps one pipeline per user so that a user's newest request supersedes their
// previous one while different users generate concurrently.
//
// A pipeline with a call in flight stays reachable after its idle TTL lapses; the TTL restarts
// when its last call returns.
type SessionService struct {
	cfg      storyboard.Config
	opts     []storyboard.Option
	idleTTL  time.Duration
	sessions *cache.Cache

	mu       sync.Mutex
	inflight map[string]*inflightSession
}

type inflightSession struct {
	pipeline *storyboard.Pipeline
	calls    int
}

// PipelineConfig maps the loaded generation settings onto a pipeline configuration
func PipelineConfig(gen config.GenerationConfig) storyboard.Config {
	return storyboard.Config{
		Endpoint:       gen.Endpoint,
		Model:          gen.Model,
		APIKey:         gen.APIKey,
		Temperature:    gen.Temperature,
		MaxTokens:      gen.MaxTokens,
		AttachmentPath: gen.AttachmentPath,
		Timeout:        gen.Timeout,
		Strict:         gen.Strict,
	}
}

// NewSessionService creates a session store whose pipelines expire after idleTTL without use
func NewSessionService(cfg storyboard.Config, idleTTL time.Duration, opts ...storyboard.Option) *SessionService {
	s := &SessionService{
		cfg:      cfg,
		opts:     opts,
		idleTTL:  idleTTL,
		sessions: cache.New(idleTTL, idleTTL*2),
		inflight: make(map[string]*inflightSession),
	}
	s.sessions.OnEvicted(func(userID string, _ interface{}) {
		logger.Debug("Generation session expired", logger.Fields{"user_id": userID})
	})
	return s
}

// Generate runs req on the user's pipeline, keeping the session alive for the whole call
func (s *SessionService) Generate(ctx context.Context, userID string, req *storyboard.GenerationRequest) (*storyboard.GenerationResult, error) {
	p := s.acquire(userID)
	defer s.release(userID)
	return p.Generate(ctx, req)
}

// Pipeline returns the user's pipeline, creating it on first use, and extends its lifetime
func (s *SessionService) Pipeline(userID string) *storyboard.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipelineLocked(userID)
}

// Abort aborts the user's in-flight call and reports whether there was one
func (s *SessionService) Abort(userID string) bool {
	s.mu.Lock()
	p, ok := s.lookupLocked(userID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	return p.Abort()
}

// State returns the user's observable state; a user without a session is idle
func (s *SessionService) State(userID string) storyboard.State {
	s.mu.Lock()
	p, ok := s.lookupLocked(userID)
	s.mu.Unlock()
	if !ok {
		return storyboard.State{}
	}
	return p.State()
}

// Active returns the number of live sessions
func (s *SessionService) Active() int {
	return s.sessions.ItemCount()
}

func (s *SessionService) acquire(userID string) *storyboard.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pipelineLocked(userID)
	entry, ok := s.inflight[userID]
	if !ok {
		entry = &inflightSession{pipeline: p}
		s.inflight[userID] = entry
	}
	entry.calls++
	return entry.pipeline
}

func (s *SessionService) release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.inflight[userID]
	if !ok {
		return
	}
	entry.calls--
	if entry.calls == 0 {
		delete(s.inflight, userID)
	}
	s.sessions.SetDefault(userID, entry.pipeline)
}

func (s *SessionService) pipelineLocked(userID string) *storyboard.Pipeline {
	p, ok := s.lookupLocked(userID)
	if !ok {
		p = storyboard.NewPipeline(s.cfg, s.opts...)
	}
	s.sessions.SetDefault(userID, p)
	return p
}

// lookupLocked finds the user's pipeline in the cache or among in-flight calls. s.mu must be held.
func (s *SessionService) lookupLocked(userID string) (*storyboard.Pipeline, bool) {
	if v, ok := s.sessions.Get(userID); ok {
		return v.(*storyboard.Pipeline), true
	}
	if entry, ok := s.inflight[userID]; ok {
		return entry.pipeline, true
	}
	return nil, false
}
