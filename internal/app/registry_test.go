package app_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func TestRegistryCodeSpaceExhausted(t *testing.T) {
	cfg := testSettings()
	cfg.CodeDigits = 1
	reg := app.NewRegistryWithClock(cfg, zap.NewNop(), newFakeClock().Now)
	defer reg.Close()

	for i := 0; i < 10; i++ {
		if _, err := reg.Create(teacher, twoQuestions(), domain.VisibilityLocked); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if reg.Len() != 10 {
		t.Fatalf("expected 10 rooms, got %d", reg.Len())
	}
	if _, err := reg.Create(teacher, twoQuestions(), domain.VisibilityLocked); err != domain.ErrCodeSpaceExhausted {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := app.NewRegistryWithClock(testSettings(), zap.NewNop(), newFakeClock().Now)
	defer reg.Close()

	room, err := reg.Create(teacher, twoQuestions(), domain.VisibilityLocked)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(room.Code()) != testSettings().CodeDigits {
		t.Fatalf("expected a %d-digit code, got %q", testSettings().CodeDigits, room.Code())
	}

	got, err := reg.Lookup(room.Code())
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != room {
		t.Fatalf("lookup returned a different room")
	}
	if _, err := reg.Lookup("000000"); err != domain.ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRegistryListPublic(t *testing.T) {
	reg := app.NewRegistryWithClock(testSettings(), zap.NewNop(), newFakeClock().Now)
	defer reg.Close()

	public, err := reg.Create(teacher, twoQuestions(), domain.VisibilityPublic)
	if err != nil {
		t.Fatalf("create public: %v", err)
	}
	if _, err := reg.Create(teacher, twoQuestions(), domain.VisibilityLocked); err != nil {
		t.Fatalf("create locked: %v", err)
	}
	started, err := reg.Create(teacher, twoQuestions(), domain.VisibilityPublic)
	if err != nil {
		t.Fatalf("create started: %v", err)
	}
	if err := started.Join(alice); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := started.Start(teacher.UserID); err != nil {
		t.Fatalf("start: %v", err)
	}

	summaries := reg.ListPublic()
	if len(summaries) != 1 {
		t.Fatalf("expected only the waiting public room, got %d summaries", len(summaries))
	}
	if summaries[0].Code != public.Code() {
		t.Fatalf("expected code %s, got %s", public.Code(), summaries[0].Code)
	}
	if summaries[0].OwnerName != teacher.DisplayName || summaries[0].Questions != 2 {
		t.Fatalf("unexpected summary: %+v", summaries[0])
	}
}

func TestRegistrySweepRemovesExpiredRooms(t *testing.T) {
	clock := newFakeClock()
	cfg := testSettings()
	cfg.RoomTTL = time.Minute
	reg := app.NewRegistryWithClock(cfg, zap.NewNop(), clock.Now)
	defer reg.Close()

	room, err := reg.Create(teacher, twoQuestions(), domain.VisibilityLocked)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clock.Advance(time.Minute + time.Second)
	waitForRemoval(t, reg, room.Code())
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry after sweep, got %d rooms", reg.Len())
	}
}

func TestRegistryCloseTearsDownRooms(t *testing.T) {
	reg := app.NewRegistryWithClock(testSettings(), zap.NewNop(), newFakeClock().Now)

	room, err := reg.Create(teacher, twoQuestions(), domain.VisibilityLocked)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	reg.Close()

	select {
	case <-room.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("room never closed after registry shutdown")
	}
	if err := room.Join(alice); err != domain.ErrRoomClosed {
		t.Fatalf("expected ErrRoomClosed, got %v", err)
	}
}
