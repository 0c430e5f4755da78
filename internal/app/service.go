package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// Settings are the engine's tunables. Zero values are never used directly;
// load via DefaultSettings and override from config.
type Settings struct {
	QuestionTime       time.Duration
	MaxPoints          int
	OptionsPerQuestion int
	MinQuestions       int
	MaxQuestions       int
	CodeDigits         int
	RoomTTL            time.Duration
	FinishGrace        time.Duration
	SweepInterval      time.Duration
}

// DefaultSettings mirrors the production defaults: 20s questions worth up to
// 1000 points, 4 options, 3-digit codes, 2h room lifetime, 30s finish grace.
func DefaultSettings() Settings {
	return Settings{
		QuestionTime:       20 * time.Second,
		MaxPoints:          1000,
		OptionsPerQuestion: 4,
		MinQuestions:       1,
		MaxQuestions:       100,
		CodeDigits:         3,
		RoomTTL:            2 * time.Hour,
		FinishGrace:        30 * time.Second,
		SweepInterval:      30 * time.Second,
	}
}

// ContentRepository supplies the word pool for a set of lessons. It is called
// exactly once per room, at creation time, so gameplay never waits on storage.
type ContentRepository interface {
	GetWords(ctx context.Context, lessonIDs []int64) ([]domain.Word, error)
}

// Service ties the content pool, question builder, and room registry into the
// engine's create-room use case. Rooms are driven directly afterwards.
type Service struct {
	registry *Registry
	content  ContentRepository
	cfg      Settings
	log      *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewService(registry *Registry, content ContentRepository, cfg Settings, log *zap.Logger) *Service {
	return &Service{
		registry: registry,
		content:  content,
		cfg:      cfg,
		log:      log,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Registry exposes the room directory for lookup and public listing.
func (s *Service) Registry() *Registry { return s.registry }

// CreateRoom materializes questions from the lesson pool and registers a new
// room owned by the caller. No room is created and no code is consumed when
// question building fails.
func (s *Service) CreateRoom(ctx context.Context, owner domain.Identity, lessonIDs []int64, questionCount int, visibility domain.Visibility) (*Room, error) {
	if questionCount < s.cfg.MinQuestions || questionCount > s.cfg.MaxQuestions {
		return nil, fmt.Errorf("question count must be between %d and %d", s.cfg.MinQuestions, s.cfg.MaxQuestions)
	}
	if visibility != domain.VisibilityPublic && visibility != domain.VisibilityLocked {
		return nil, fmt.Errorf("unknown visibility %q", visibility)
	}

	pool, err := s.content.GetWords(ctx, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("load word pool: %w", err)
	}

	s.mu.Lock()
	questions, err := BuildQuestions(s.rnd, pool, questionCount, s.cfg.OptionsPerQuestion)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.registry.Create(owner, questions, visibility)
}
