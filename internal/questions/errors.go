package questions

import "errors"

var (
	ErrNotFound          = errors.New("question not found")
	ErrAnswerNotFound    = errors.New("answer not found")
	ErrForbidden         = errors.New("not allowed to modify this question")
	ErrAuthRequired      = errors.New("authentication required")
	ErrEmptyAnswer       = errors.New("answer text is required")
	ErrSearchFailed      = errors.New("search failed")
	ErrModelAnswerFailed = errors.New("model answer unavailable")
)
