package domain

import "time"

// Phase is the room's state-machine position.
type Phase string

const (
	PhaseWaiting        Phase = "waiting"
	PhaseActiveQuestion Phase = "active_question"
	PhaseQuestionEnded  Phase = "question_ended"
	PhaseFinished       Phase = "finished"
	PhaseTornDown       Phase = "torn_down"
)

// Visibility controls whether a waiting room shows up in public listings.
type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityLocked Visibility = "locked"
)

// Role of a connected identity, resolved upstream of the engine.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Identity is the already-validated user handed to the engine per connection.
type Identity struct {
	UserID      string
	DisplayName string
	Role        Role
}

// Word is one term/translation pair from the content pool.
type Word struct {
	ID      int64  `json:"id"`
	Term    string `json:"term"`
	Meaning string `json:"meaning"`
}

// Question is a multiple-choice item, immutable once the room is created.
type Question struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// CorrectAnswer returns the text of the correct option.
func (q Question) CorrectAnswer() string {
	if q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options) {
		return q.Options[q.CorrectIndex]
	}
	return ""
}

// AnswerRecord is one player's response to one question. SelectedIndex is -1
// for a timeout entry; Elapsed is server receipt minus server question start.
type AnswerRecord struct {
	UserID        string        `json:"userId"`
	SelectedIndex int           `json:"selectedIndex"`
	Elapsed       time.Duration `json:"-"`
	Correct       bool          `json:"correct"`
	Points        int           `json:"points"`
}

// PlayerInfo is the roster view of a player.
type PlayerInfo struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Connected   bool   `json:"connected"`
}

// ChangeKind classifies a player's rank movement between consecutive questions.
type ChangeKind string

const (
	ChangeUp   ChangeKind = "up"
	ChangeDown ChangeKind = "down"
	ChangeSame ChangeKind = "same"
	ChangeNew  ChangeKind = "new"
)

// LeaderboardEntry is one ranked row with rank-delta annotations.
type LeaderboardEntry struct {
	Rank           int        `json:"rank"`
	UserID         string     `json:"userId"`
	DisplayName    string     `json:"displayName"`
	Score          int        `json:"score"`
	Connected      bool       `json:"connected"`
	PointsAdded    int        `json:"pointsAdded"`
	PreviousRank   *int       `json:"previousRank,omitempty"`
	PositionChange int        `json:"positionChange"`
	Change         ChangeKind `json:"change"`
}

// RoomSummary is the public-listing view of a waiting room.
type RoomSummary struct {
	Code         string    `json:"code"`
	OwnerName    string    `json:"ownerName"`
	PlayersCount int       `json:"playersCount"`
	Questions    int       `json:"questions"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RoomStatus is the owner-facing snapshot of a live room.
type RoomStatus struct {
	Code            string       `json:"code"`
	Phase           Phase        `json:"phase"`
	Visibility      Visibility   `json:"visibility"`
	Players         []PlayerInfo `json:"players"`
	CurrentQuestion int          `json:"currentQuestion"` // 1-based, 0 before start
	TotalQuestions  int          `json:"totalQuestions"`
	AnswersReceived int          `json:"answersReceived"`
}
