package domain

// Event is one member of the closed set of room broadcasts. Each kind has a
// fixed payload shape; the gateway wraps it in a {type, payload} envelope.
type Event interface {
	Kind() string
}

// RosterChanged is broadcast whenever a player joins, leaves, or flips
// connection state while the room exists.
type RosterChanged struct {
	Players      []PlayerInfo `json:"players"`
	PlayersCount int          `json:"playersCount"`
}

func (RosterChanged) Kind() string { return "roster_changed" }

// QuizStarted announces the waiting -> active_question transition.
type QuizStarted struct {
	TotalQuestions int `json:"totalQuestions"`
}

func (QuizStarted) Kind() string { return "quiz_started" }

// QuestionStarted carries the question now on the clock. The correct index is
// deliberately absent.
type QuestionStarted struct {
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options"`
	QuestionNumber int      `json:"questionNumber"`
	TotalQuestions int      `json:"totalQuestions"`
	TimeLimitSec   int      `json:"timeLimit"`
}

func (QuestionStarted) Kind() string { return "question_started" }

// CountdownTick is the 1 Hz remaining-time broadcast while a question is live.
type CountdownTick struct {
	Remaining int `json:"remaining"`
}

func (CountdownTick) Kind() string { return "countdown" }

// AnswerProgress reports how many answers the current question has collected.
type AnswerProgress struct {
	AnswersReceived int `json:"answersReceived"`
	TotalPlayers    int `json:"totalPlayers"`
}

func (AnswerProgress) Kind() string { return "answer_progress" }

// QuestionEnded carries the reveal and the delta-annotated leaderboard.
type QuestionEnded struct {
	QuestionNumber  int                `json:"questionNumber"`
	TotalQuestions  int                `json:"totalQuestions"`
	CorrectIndex    int                `json:"correctIndex"`
	CorrectAnswer   string             `json:"correctAnswer"`
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
	AnswersReceived int                `json:"answersReceived"`
	TotalPlayers    int                `json:"totalPlayers"`
}

func (QuestionEnded) Kind() string { return "question_ended" }

// QuizFinished carries the final standings.
type QuizFinished struct {
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
	TotalQuestions int                `json:"totalQuestions"`
}

func (QuizFinished) Kind() string { return "quiz_finished" }

// RoomTerminated is the teardown notice, e.g. when the owner disconnects.
type RoomTerminated struct {
	Reason string `json:"reason"`
}

func (RoomTerminated) Kind() string { return "room_terminated" }
