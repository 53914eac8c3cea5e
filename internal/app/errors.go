package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/blob"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/gitrepo"
	"github.com/Vesxoxdefinitely/AlwaysBETA/internal/session"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errNotFound() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// validationFailed reports field problems as 422 with the fields in details.
func validationFailed(problems map[string]string) *DomainError {
	message := "Validation failed"
	if len(problems) == 1 {
		for _, text := range problems {
			message = text
		}
	}
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, problems)
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, session.ErrNotFound) ||
		errors.Is(err, blob.ErrNotFound) ||
		errors.Is(err, gitrepo.ErrNotFound)
}
