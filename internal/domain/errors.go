package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrEmptyPrompt  = errors.New("empty prompt")
	ErrNotRetryable = errors.New("job is not in error state")
	ErrNotEditable  = errors.New("job is no longer editable")
	ErrDuplicateID  = errors.New("duplicate job id")
)
