package app

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// Registry is the process-wide directory of active rooms keyed by join code.
// It owns code allocation, lookup, public listing, and the background sweep
// that removes rooms past their expiry. The registry map is the only state
// shared between rooms; everything else belongs to a single room's goroutine.
type Registry struct {
	cfg Settings
	log *zap.Logger
	now func() time.Time

	mu    sync.RWMutex
	rooms map[string]*Room
	rnd   *rand.Rand

	done chan struct{}
	once sync.Once
}

// NewRegistry constructs a registry and starts its sweep loop. Callers own
// the lifecycle: Close tears down every remaining room.
func NewRegistry(cfg Settings, log *zap.Logger) *Registry {
	return NewRegistryWithClock(cfg, log, time.Now)
}

// NewRegistryWithClock allows deterministic timestamps in tests.
func NewRegistryWithClock(cfg Settings, log *zap.Logger, now func() time.Time) *Registry {
	r := &Registry{
		cfg:   cfg,
		log:   log,
		now:   now,
		rooms: make(map[string]*Room),
		rnd:   rand.New(rand.NewSource(now().UnixNano())),
		done:  make(chan struct{}),
	}
	go r.sweep()
	return r
}

// Create allocates an unused code, builds the room around the pre-materialized
// question sequence, and starts its goroutine. Fails with CodeSpaceExhausted
// when every code in the configured space is taken.
func (r *Registry) Create(owner domain.Identity, questions []domain.Question, visibility domain.Visibility) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	space := 1
	for i := 0; i < r.cfg.CodeDigits; i++ {
		space *= 10
	}
	if len(r.rooms) >= space {
		return nil, domain.ErrCodeSpaceExhausted
	}

	var code string
	for {
		code = fmt.Sprintf("%0*d", r.cfg.CodeDigits, r.rnd.Intn(space))
		if _, taken := r.rooms[code]; !taken {
			break
		}
	}

	room := newRoom(code, owner, questions, visibility, r.cfg, r.log, r.now, r.remove)
	r.rooms[code] = room
	go room.run()
	r.log.Info("room created",
		zap.String("room", code),
		zap.String("owner", owner.UserID),
		zap.Int("questions", len(questions)),
		zap.String("visibility", string(visibility)))
	return room, nil
}

// Lookup resolves a join code to its room.
func (r *Registry) Lookup(code string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// ListPublic returns summaries for rooms that are public and still waiting.
func (r *Registry) ListPublic() []domain.RoomSummary {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	summaries := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		if summary, ok := room.Summary(); ok {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}

// Len reports the number of rooms currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Close stops the sweep and tears down every remaining room.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.done) })

	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	for _, room := range rooms {
		room.Terminate("server shutting down")
		<-room.Done()
	}
}

// remove is handed to each room as its onClose hook; the room calls it from
// its own goroutine once the loop has exited.
func (r *Registry) remove(code string) {
	r.mu.Lock()
	delete(r.rooms, code)
	r.mu.Unlock()
}

// sweep periodically terminates rooms past expires_at. Teardown is requested
// through the room's command loop, so a sweep can never interrupt a room
// mid-transition; rooms already closed ignore the request.
func (r *Registry) sweep() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
		}

		now := r.now()
		r.mu.RLock()
		expired := make([]*Room, 0)
		for _, room := range r.rooms {
			if now.After(room.ExpiresAt()) {
				expired = append(expired, room)
			}
		}
		r.mu.RUnlock()

		for _, room := range expired {
			r.log.Info("sweeping expired room", zap.String("room", room.Code()))
			room.Terminate("room expired")
		}
	}
}
