package core

import "errors"

// Load failures. Both are absorbed by the comparator into a non-match; callers
// that use LoadTable directly can test for them with errors.Is.
var (
	// ErrUnreadableFile means the path could not be opened or read.
	ErrUnreadableFile = errors.New("unreadable file")

	// ErrUnparsableFormat means the content could not be interpreted as a table.
	ErrUnparsableFormat = errors.New("unparsable format")
)

// ErrNoFileProvided is returned by collaborators when a comparison is requested
// with a missing input.
var ErrNoFileProvided = errors.New("no file provided")

// ErrFileTooLarge is returned when an input exceeds the configured size limit.
var ErrFileTooLarge = errors.New("file too large")
