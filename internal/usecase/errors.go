package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// 入力チェックの指摘（どの項目がなぜダメか）
type Issue struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type HTTPError struct {
	Status  int
	Message string
	Issues  []Issue
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 400 + 項目ごとの指摘
func NewValidationError(message string, issues []Issue) error {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Message: message,
		Issues:  issues,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// リトライしてほしい内部エラー（webhookは500を返してプロバイダに再送させる）
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error { return e.Err }

func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
