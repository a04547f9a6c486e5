package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	          Patterns: "file too large", "request body too large"
//	FILE002 - Empty file: The uploaded file has no rows
//	          Patterns: "empty file"
//	FILE003 - Ragged rows: A row has more columns than the header
//	          Patterns: "more fields than the header"
//	FILE004 - Unparsable: File could not be read as a table
//	          Patterns: "unparsable format"
//	FILE005 - Unreadable: File could not be opened
//	          Patterns: "unreadable file"
//	FILE006 - No file: One of the two files is missing
//	          Patterns: "no file provided"
//
// # Comparison Errors (CMP001-CMP099)
//
//	CMP001 - System busy: Too many comparisons in progress
//	         Patterns: "too many comparisons"
//	CMP002 - Request cancelled
//	         Patterns: "context canceled"
//	CMP003 - Request timeout: Comparison took too long
//	         Patterns: "context deadline exceeded"
//
// # Text Tool Errors (TXT001-TXT099)
//
//	TXT001 - Not enough values: Token comparison needs two inputs
//	         Patterns: "at least two values"
//
// # History Errors (HIST001-HIST099)
//
//	HIST001 - History disabled
//	          Patterns: "history is disabled"
//	HIST002 - History database unreachable
//	          Patterns: "connection refused"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check application logs for the
// original technical error.
//
// Patterns are matched case-insensitively using strings.Contains. The first
// matching pattern wins, so more specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Order matters: "empty file" and the ragged row pattern are wrapped in
// ErrUnparsableFormat and must be matched before it.
var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE006)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Compare smaller extracts of the data",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Compare smaller extracts of the data",
			Code:    "FILE001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header and data rows",
			Code:    "FILE002",
		},
	},
	{
		pattern: "more fields than the header",
		msg: UserMessage{
			Message: "A row has more columns than the header",
			Action:  "Check the delimiter and quoting in your file",
			Code:    "FILE003",
		},
	},
	{
		pattern: "unparsable format",
		msg: UserMessage{
			Message: "File could not be read as a table",
			Action:  "Upload a CSV, TSV, or XLSX file",
			Code:    "FILE004",
		},
	},
	{
		pattern: "unreadable file",
		msg: UserMessage{
			Message: "File could not be opened",
			Action:  "Please upload the file again",
			Code:    "FILE005",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "Two files are required",
			Action:  "Please select both files to compare",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Comparison Errors (CMP001-CMP003)
	// =========================================================================
	{
		pattern: "too many comparisons",
		msg: UserMessage{
			Message: "System is busy with other comparisons",
			Action:  "Please wait a moment and try again",
			Code:    "CMP001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "CMP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Comparison timed out",
			Action:  "Try comparing smaller files",
			Code:    "CMP003",
		},
	},

	// =========================================================================
	// Text Tool Errors (TXT001)
	// =========================================================================
	{
		pattern: "at least two values",
		msg: UserMessage{
			Message: "Not enough values to compare",
			Action:  "Please fill in at least two text boxes",
			Code:    "TXT001",
		},
	},

	// =========================================================================
	// History Errors (HIST001-HIST002)
	// =========================================================================
	{
		pattern: "history is disabled",
		msg: UserMessage{
			Message: "Comparison history is not enabled",
			Action:  "Set HISTORY_DATABASE_URL to record comparisons",
			Code:    "HIST001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to history database",
			Action:  "Please try again in a few moments",
			Code:    "HIST002",
		},
	},

	// =========================================================================
	// Request Errors (REQ001)
	// =========================================================================
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Check the submitted fields and try again",
			Code:    "REQ001",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	_, err := LoadTable("missing.csv", DefaultLoadOptions())
//	msg := MapError(err)
//	// msg.Code == "FILE005"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
