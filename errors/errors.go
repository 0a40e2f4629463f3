package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error is the API error type carried from the services up to the handlers.
type Error struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

var (
	ErrBadRequest          = New("bad request", http.StatusBadRequest)
	ErrUnauthorized        = New("unauthorized", http.StatusUnauthorized)
	ErrForbidden           = New("forbidden", http.StatusForbidden)
	ErrNotFound            = New("not found", http.StatusNotFound)
	ErrConflict            = New("conflict", http.StatusConflict)
	ErrInternalServerError = New("internal server error", http.StatusInternalServerError)

	InActiveUserError = errors.New("user inactive")
)

func New(message string, status int) *Error {
	return &Error{
		Message: message,
		Status:  status,
	}
}

// Error satisfies the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("message: %v, status: %d", e.Message, e.Status)
}

// Is compares errors by status so wrapped sentinels still match
func (e *Error) Is(target error) bool {
	var apiErr *Error
	if !errors.As(target, &apiErr) {
		return false
	}
	return e.Status == apiErr.Status
}

// IsDuplicateKeyError reports whether err came from a violated unique
// constraint, either surfaced by gorm or by the postgres driver directly.
func IsDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// GetUniqueContraintError translates a duplicate key failure into a 409
func GetUniqueContraintError(err error) *Error {
	if IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return ErrInternalServerError
}

// ErrorHandler is plugged into the rate limit middleware
func ErrorHandler(c *gin.Context, info ratelimit.Info) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error": "too many requests, try again in " + time.Until(info.ResetTime).String(),
	})
}
