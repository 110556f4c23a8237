package session

import "errors"

// Sentinel errors for practice sessions.
var (
	ErrEmptyAnswer      = errors.New("answer is empty")
	ErrGenerationParse  = errors.New("generation output could not be parsed")
	ErrTranscription    = errors.New("transcription failed")
	ErrSlotOutOfRange   = errors.New("question index out of range")
	ErrInvalidCount     = errors.New("question count out of range")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoTranscriber    = errors.New("transcription is not configured")
	ErrNoVocabularyBook = errors.New("vocabulary book is not configured")
)

// AnswerError reports an answer that could not be assessed. The slot keeps
// its earlier state; Answer holds the rejected text so it can be resubmitted.
type AnswerError struct {
	Index  int
	Answer string
	Err    error
}

func (e *AnswerError) Error() string { return e.Err.Error() }

func (e *AnswerError) Unwrap() error { return e.Err }
