package app

import (
	"math"
	"time"

	"go.uber.org/zap"

	"live-quiz-service/internal/domain"
)

// subscriberBuffer sizes the per-subscriber event channel; the room drops the
// oldest pending event for a subscriber that falls this far behind.
const subscriberBuffer = 16

type player struct {
	info     domain.PlayerInfo
	joinSeq  int
	lastRank *int
}

// Room is one live quiz session. All state below the command channel is owned
// by the room's single goroutine: every mutation (join, answer, control
// command, timer tick, expiry, sweep shutdown) arrives as a message on
// commands and is processed one at a time, so rooms never need fine-grained
// locking and never block each other.
type Room struct {
	code       string
	owner      domain.Identity
	visibility domain.Visibility
	questions  []domain.Question
	createdAt  time.Time
	expiresAt  time.Time

	cfg     Settings
	log     *zap.Logger
	now     func() time.Time
	onClose func(code string)

	commands chan func()
	closed   chan struct{}

	// state below is touched only by run().
	phase            domain.Phase
	idx              int
	players          map[string]*player
	joinCounter      int
	answers          map[string]*domain.AnswerRecord
	pointsAdded      map[string]int
	prevRanks        map[string]int
	questionStart    time.Time
	questionDeadline time.Time
	ticker           *time.Ticker
	tickC            <-chan time.Time
	expireC          <-chan time.Time
	graceC           <-chan time.Time
	subscribers      map[string]chan domain.Event
	stopped          bool
}

func newRoom(code string, owner domain.Identity, questions []domain.Question, visibility domain.Visibility, cfg Settings, log *zap.Logger, now func() time.Time, onClose func(string)) *Room {
	created := now()
	return &Room{
		code:        code,
		owner:       owner,
		visibility:  visibility,
		questions:   questions,
		createdAt:   created,
		expiresAt:   created.Add(cfg.RoomTTL),
		cfg:         cfg,
		log:         log.With(zap.String("room", code)),
		now:         now,
		onClose:     onClose,
		commands:    make(chan func()),
		closed:      make(chan struct{}),
		phase:       domain.PhaseWaiting,
		idx:         -1,
		players:     make(map[string]*player),
		prevRanks:   make(map[string]int),
		subscribers: make(map[string]chan domain.Event),
	}
}

// Code returns the room's join code.
func (r *Room) Code() string { return r.code }

// OwnerID returns the creating teacher's user id.
func (r *Room) OwnerID() string { return r.owner.UserID }

// ExpiresAt is the absolute deadline past which the sweep removes the room.
func (r *Room) ExpiresAt() time.Time { return r.expiresAt }

// Done is closed once the room's goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.closed }

// do runs fn on the room goroutine and waits for it to complete.
func (r *Room) do(fn func()) error {
	done := make(chan struct{})
	select {
	case r.commands <- func() { fn(); close(done) }:
	case <-r.closed:
		return domain.ErrRoomClosed
	}
	select {
	case <-done:
		return nil
	case <-r.closed:
		return domain.ErrRoomClosed
	}
}

func (r *Room) run() {
	for !r.stopped {
		select {
		case fn := <-r.commands:
			fn()
		case <-r.tickC:
			r.emitCountdown()
		case <-r.expireC:
			r.endQuestion()
		case <-r.graceC:
			r.shutdown("quiz finished", false)
		}
	}
	r.stopQuestionTimers()
	for _, ch := range r.subscribers {
		close(ch)
	}
	close(r.closed)
	if r.onClose != nil {
		r.onClose(r.code)
	}
	r.log.Info("room closed")
}

// Join adds a player while the room is waiting. A known identity arriving in
// any later phase is a reconnect: scores and the answer ledger are keyed by
// user id, not connection, so the player resumes where they left off.
func (r *Room) Join(id domain.Identity) error {
	var cmdErr error
	err := r.do(func() {
		if p, ok := r.players[id.UserID]; ok {
			p.info.Connected = true
			p.info.DisplayName = id.DisplayName
			r.broadcast(r.rosterEvent())
			return
		}
		if r.phase != domain.PhaseWaiting {
			cmdErr = domain.ErrRoomNotJoinable
			return
		}
		r.players[id.UserID] = &player{
			info: domain.PlayerInfo{
				UserID:      id.UserID,
				DisplayName: id.DisplayName,
				Connected:   true,
			},
			joinSeq: r.joinCounter,
		}
		r.joinCounter++
		r.broadcast(r.rosterEvent())
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// Leave removes a waiting player from the roster, or marks a mid-quiz player
// disconnected so their score keeps counting.
func (r *Room) Leave(userID string) error {
	var cmdErr error
	err := r.do(func() {
		p, ok := r.players[userID]
		if !ok {
			cmdErr = domain.ErrNotInRoom
			return
		}
		if r.phase == domain.PhaseWaiting {
			delete(r.players, userID)
		} else {
			p.info.Connected = false
		}
		r.broadcast(r.rosterEvent())
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// HandleDisconnect reacts to the gateway losing userID's connection. The
// owner vanishing is the one fatal condition: the room broadcasts a
// termination notice and tears down immediately. A player is only flagged
// disconnected; they stay on the leaderboard.
func (r *Room) HandleDisconnect(userID string) {
	_ = r.do(func() {
		if userID == r.owner.UserID {
			r.shutdown("owner disconnected, quiz ended", true)
			return
		}
		if p, ok := r.players[userID]; ok {
			p.info.Connected = false
			r.broadcast(r.rosterEvent())
		}
	})
}

// Start begins the quiz: waiting -> active_question with the first question
// on the clock. Owner-only, requires at least one connected player.
func (r *Room) Start(callerID string) error {
	var cmdErr error
	err := r.do(func() {
		if callerID != r.owner.UserID {
			cmdErr = domain.ErrNotAuthorized
			return
		}
		if r.phase != domain.PhaseWaiting {
			cmdErr = domain.ErrInvalidPhase
			return
		}
		connected := 0
		for _, p := range r.players {
			if p.info.Connected {
				connected++
			}
		}
		if connected == 0 {
			cmdErr = domain.ErrNoPlayers
			return
		}
		r.broadcast(domain.QuizStarted{TotalQuestions: len(r.questions)})
		r.idx = 0
		r.startQuestion()
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// Submit records userID's answer to the live question. The elapsed time used
// for scoring is server question start to server receipt; client clocks are
// never consulted. A submission past the deadline is rejected outright and
// leaves no record.
func (r *Room) Submit(userID string, optionIndex int) error {
	var cmdErr error
	err := r.do(func() {
		if r.phase != domain.PhaseActiveQuestion {
			// The round is over but the quiz is not: that is a late answer,
			// not a misuse of the protocol.
			if r.phase == domain.PhaseQuestionEnded {
				cmdErr = domain.ErrSubmissionTooLate
			} else {
				cmdErr = domain.ErrInvalidPhase
			}
			return
		}
		p, ok := r.players[userID]
		if !ok {
			cmdErr = domain.ErrNotInRoom
			return
		}
		if _, dup := r.answers[userID]; dup {
			cmdErr = domain.ErrAlreadyAnswered
			return
		}
		now := r.now()
		if now.After(r.questionDeadline) {
			cmdErr = domain.ErrSubmissionTooLate
			return
		}
		question := r.questions[r.idx]
		if optionIndex < 0 || optionIndex >= len(question.Options) {
			cmdErr = domain.ErrInvalidOption
			return
		}

		record := &domain.AnswerRecord{
			UserID:        userID,
			SelectedIndex: optionIndex,
			Elapsed:       now.Sub(r.questionStart),
			Correct:       optionIndex == question.CorrectIndex,
		}
		if record.Correct {
			record.Points = Score(r.cfg.MaxPoints, r.cfg.QuestionTime, record.Elapsed)
		}
		r.answers[userID] = record
		p.info.Score += record.Points
		r.pointsAdded[userID] = record.Points

		r.broadcast(domain.AnswerProgress{
			AnswersReceived: len(r.answers),
			TotalPlayers:    len(r.players),
		})
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// Skip ends the live question immediately, as if the timer had expired now.
func (r *Room) Skip(callerID string) error {
	var cmdErr error
	err := r.do(func() {
		if callerID != r.owner.UserID {
			cmdErr = domain.ErrNotAuthorized
			return
		}
		if r.phase != domain.PhaseActiveQuestion {
			cmdErr = domain.ErrInvalidPhase
			return
		}
		r.endQuestion()
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// Next advances past an ended question: either the next question goes on the
// clock, or the quiz finishes and teardown is scheduled after a grace period.
func (r *Room) Next(callerID string) error {
	var cmdErr error
	err := r.do(func() {
		if callerID != r.owner.UserID {
			cmdErr = domain.ErrNotAuthorized
			return
		}
		if r.phase != domain.PhaseQuestionEnded {
			cmdErr = domain.ErrInvalidPhase
			return
		}
		if r.idx+1 < len(r.questions) {
			r.idx++
			r.startQuestion()
			return
		}
		r.phase = domain.PhaseFinished
		r.broadcast(domain.QuizFinished{
			Leaderboard:    Rankings(r.standings(), r.prevRanks, r.pointsAdded),
			TotalQuestions: len(r.questions),
		})
		r.graceC = time.After(r.cfg.FinishGrace)
		r.log.Info("quiz finished", zap.Int("players", len(r.players)))
	})
	if err != nil {
		return err
	}
	return cmdErr
}

// Status returns the owner-facing snapshot of the room.
func (r *Room) Status(callerID string) (domain.RoomStatus, error) {
	var status domain.RoomStatus
	var cmdErr error
	err := r.do(func() {
		if callerID != r.owner.UserID {
			cmdErr = domain.ErrNotAuthorized
			return
		}
		status = domain.RoomStatus{
			Code:            r.code,
			Phase:           r.phase,
			Visibility:      r.visibility,
			Players:         r.playerInfos(),
			CurrentQuestion: r.idx + 1,
			TotalQuestions:  len(r.questions),
			AnswersReceived: len(r.answers),
		}
	})
	if err != nil {
		return domain.RoomStatus{}, err
	}
	return status, cmdErr
}

// Summary returns the public-listing view; ok is false unless the room is
// public and still waiting for players.
func (r *Room) Summary() (domain.RoomSummary, bool) {
	var summary domain.RoomSummary
	var ok bool
	err := r.do(func() {
		if r.visibility != domain.VisibilityPublic || r.phase != domain.PhaseWaiting {
			return
		}
		ok = true
		summary = domain.RoomSummary{
			Code:         r.code,
			OwnerName:    r.owner.DisplayName,
			PlayersCount: len(r.players),
			Questions:    len(r.questions),
			CreatedAt:    r.createdAt,
		}
	})
	if err != nil {
		return domain.RoomSummary{}, false
	}
	return summary, ok
}

// Phase reports the room's current state-machine position.
func (r *Room) Phase() domain.Phase {
	phase := domain.PhaseTornDown
	_ = r.do(func() { phase = r.phase })
	return phase
}

// Subscribe registers userID (a player or the owner) for the room's event
// stream. The channel closes when the subscription is cancelled or the room
// tears down. Sends never block the room: a subscriber that stops draining
// loses its oldest pending event first.
func (r *Room) Subscribe(userID string) (<-chan domain.Event, func(), error) {
	var ch chan domain.Event
	var cmdErr error
	err := r.do(func() {
		if _, ok := r.players[userID]; !ok && userID != r.owner.UserID {
			cmdErr = domain.ErrNotInRoom
			return
		}
		if prev, ok := r.subscribers[userID]; ok {
			close(prev)
		}
		ch = make(chan domain.Event, subscriberBuffer)
		r.subscribers[userID] = ch
	})
	if err != nil {
		return nil, nil, err
	}
	if cmdErr != nil {
		return nil, nil, cmdErr
	}
	cancel := func() {
		_ = r.do(func() {
			if cur, ok := r.subscribers[userID]; ok && cur == ch {
				delete(r.subscribers, userID)
				close(cur)
			}
		})
	}
	return ch, cancel, nil
}

// Terminate shuts the room down with a broadcast notice. Used by the registry
// sweep for expired rooms; routed through the command loop so it can never
// interleave with a transition.
func (r *Room) Terminate(reason string) {
	_ = r.do(func() { r.shutdown(reason, true) })
}

// --- loop-internal helpers; callers hold the loop by construction ---

func (r *Room) startQuestion() {
	r.phase = domain.PhaseActiveQuestion
	r.answers = make(map[string]*domain.AnswerRecord)
	r.pointsAdded = make(map[string]int)
	r.questionStart = r.now()
	r.questionDeadline = r.questionStart.Add(r.cfg.QuestionTime)

	r.ticker = time.NewTicker(time.Second)
	r.tickC = r.ticker.C
	r.expireC = time.After(r.cfg.QuestionTime)

	question := r.questions[r.idx]
	r.broadcast(domain.QuestionStarted{
		Prompt:         question.Prompt,
		Options:        question.Options,
		QuestionNumber: r.idx + 1,
		TotalQuestions: len(r.questions),
		TimeLimitSec:   int(r.cfg.QuestionTime / time.Second),
	})
	r.log.Debug("question started", zap.Int("question", r.idx+1))
}

func (r *Room) emitCountdown() {
	if r.phase != domain.PhaseActiveQuestion {
		return
	}
	remaining := int(math.Ceil(r.questionDeadline.Sub(r.now()).Seconds()))
	if remaining <= 0 {
		return
	}
	r.broadcast(domain.CountdownTick{Remaining: remaining})
}

// endQuestion drives active_question -> question_ended, whether by expiry or
// skip. A stale expiry arriving in any other phase is a no-op, which makes
// the cancel-exactly-once requirement hold without extra bookkeeping.
func (r *Room) endQuestion() {
	if r.phase != domain.PhaseActiveQuestion {
		return
	}
	r.stopQuestionTimers()
	r.phase = domain.PhaseQuestionEnded

	entries := Rankings(r.standings(), r.prevRanks, r.pointsAdded)
	question := r.questions[r.idx]
	r.broadcast(domain.QuestionEnded{
		QuestionNumber:  r.idx + 1,
		TotalQuestions:  len(r.questions),
		CorrectIndex:    question.CorrectIndex,
		CorrectAnswer:   question.CorrectAnswer(),
		Leaderboard:     entries,
		AnswersReceived: len(r.answers),
		TotalPlayers:    len(r.players),
	})

	r.prevRanks = make(map[string]int, len(entries))
	for _, e := range entries {
		r.prevRanks[e.UserID] = e.Rank
		if p, ok := r.players[e.UserID]; ok {
			rank := e.Rank
			p.lastRank = &rank
		}
	}
	r.log.Debug("question ended",
		zap.Int("question", r.idx+1),
		zap.Int("answers", len(r.answers)))
}

func (r *Room) stopQuestionTimers() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	r.tickC = nil
	r.expireC = nil
}

func (r *Room) shutdown(reason string, notify bool) {
	if r.stopped {
		return
	}
	if notify {
		r.broadcast(domain.RoomTerminated{Reason: reason})
	}
	r.phase = domain.PhaseTornDown
	r.stopped = true
	r.log.Info("room torn down", zap.String("reason", reason))
}

func (r *Room) broadcast(ev domain.Event) {
	for _, ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest pending event so a stalled subscriber never
			// blocks the room loop.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

func (r *Room) rosterEvent() domain.RosterChanged {
	infos := r.playerInfos()
	return domain.RosterChanged{Players: infos, PlayersCount: len(infos)}
}

func (r *Room) playerInfos() []domain.PlayerInfo {
	standings := r.standings()
	ranked := Rankings(standings, r.prevRanks, r.pointsAdded)
	infos := make([]domain.PlayerInfo, 0, len(ranked))
	for _, e := range ranked {
		infos = append(infos, domain.PlayerInfo{
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Score:       e.Score,
			Connected:   e.Connected,
		})
	}
	return infos
}

func (r *Room) standings() []Standing {
	standings := make([]Standing, 0, len(r.players))
	for _, p := range r.players {
		standings = append(standings, Standing{
			UserID:      p.info.UserID,
			DisplayName: p.info.DisplayName,
			Score:       p.info.Score,
			Connected:   p.info.Connected,
			JoinSeq:     p.joinSeq,
		})
	}
	return standings
}
