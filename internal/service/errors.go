package service

import (
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// ValidationError carries field-scoped messages for client-correctable input
// failures. It is never logged as a server error.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }

// IsStoreError reports whether err looks like a data-store constraint or
// connectivity failure, as opposed to an unclassified server error.
func IsStoreError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrInvalidDB) || errors.Is(err, gorm.ErrInvalidTransaction) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"duplicate", "unique", "constraint", "bad connection", "connection refused", "connection reset"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
