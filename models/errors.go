package models

import "fmt"

// MsgRequired is the ValidationError message for a missing field.
const MsgRequired = "is required"

// ValidationError reports a missing or malformed post field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid post: %s %s", e.Field, e.Message)
}
