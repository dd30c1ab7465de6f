package telegram

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes callers need to distinguish. ErrThreadMissing drives the
// self-healing relocate path; ErrPermissionDenied is swallowed on best-effort
// operations.
var (
	ErrThreadMissing    = errors.New("message thread missing")
	ErrPermissionDenied = errors.New("permission denied")
)

// APIError is a Bot API call that came back with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed: %s (%d)", e.Method, e.Description, e.Code)
}

// Is maps API descriptions onto the sentinel failure classes.
func (e *APIError) Is(target error) bool {
	desc := strings.ToLower(e.Description)
	switch target {
	case ErrThreadMissing:
		return strings.Contains(desc, "thread not found") ||
			strings.Contains(desc, "topic_deleted") ||
			strings.Contains(desc, "topic_closed")
	case ErrPermissionDenied:
		return e.Code == 403 || strings.Contains(desc, "not enough rights")
	}
	return false
}
