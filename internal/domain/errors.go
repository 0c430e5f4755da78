package domain

import "errors"

var (
	// ErrNotAuthorized is returned when a non-owner issues an owner-only command.
	ErrNotAuthorized = errors.New("only the room owner may issue this command")
	// ErrInvalidPhase is returned when a command is illegal in the room's current phase.
	ErrInvalidPhase = errors.New("command not allowed in current phase")
	// ErrRoomNotFound indicates an unknown or already removed room code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNotJoinable is returned when joining a room that is no longer waiting.
	ErrRoomNotJoinable = errors.New("room is not accepting new players")
	// ErrAlreadyAnswered is returned on a second submission for the same question.
	ErrAlreadyAnswered = errors.New("answer already recorded for this question")
	// ErrSubmissionTooLate is returned when an answer arrives past the question deadline.
	ErrSubmissionTooLate = errors.New("submission received after question ended")
	// ErrInsufficientContent indicates the lesson word pool cannot cover the requested question count.
	ErrInsufficientContent = errors.New("not enough words to build requested questions")
	// ErrCodeSpaceExhausted indicates no unused room code remains in the configured code space.
	ErrCodeSpaceExhausted = errors.New("no free room codes available")
	// ErrNoPlayers is returned when starting a quiz with no connected players.
	ErrNoPlayers = errors.New("no connected players in room")
	// ErrNotInRoom is returned when a player acts in a room they never joined.
	ErrNotInRoom = errors.New("player has not joined this room")
	// ErrInvalidOption indicates a submitted option index outside the question's options.
	ErrInvalidOption = errors.New("option index out of range")
	// ErrRoomClosed is returned when a command reaches a room whose loop has exited.
	ErrRoomClosed = errors.New("room is closed")
)
