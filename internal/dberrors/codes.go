package dberrors

import (
	"errors"
	"fmt"
)

// ErrCacheMiss is returned by cache reads when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// ErrorCode classifies data access errors
type ErrorCode int

const (
	// Success
	ErrCodeOK ErrorCode = 0

	// Configuration errors - fatal at startup, never retried
	ErrCodeInvalidConfig ErrorCode = 1000
	ErrCodeNoShardForKey ErrorCode = 1001

	// Transient backend errors - surfaced to the caller, retry is the
	// caller's decision
	ErrCodeUnavailable      ErrorCode = 2000
	ErrCodeQueryFailed      ErrorCode = 2001
	ErrCodeScatterFailed    ErrorCode = 2002
	ErrCodeShardWriteFailed ErrorCode = 2003
	ErrCodeCacheFailed      ErrorCode = 2004
)

// DataError represents a structured error with code and context
type DataError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

// Error implements the error interface
func (e *DataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *DataError) Unwrap() error {
	return e.Cause
}

// New creates a new DataError
func New(code ErrorCode, message string, cause error) *DataError {
	return &DataError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

// WithDetail adds a detail to the error
func (e *DataError) WithDetail(key string, value interface{}) *DataError {
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func InvalidConfig(message string, cause error) *DataError {
	return New(ErrCodeInvalidConfig, message, cause)
}

func NoShardForKey(id string, slot uint32) *DataError {
	return New(ErrCodeNoShardForKey, fmt.Sprintf("no shard covers slot %d for id %q", slot, id), nil).
		WithDetail("id", id).
		WithDetail("slot", slot)
}

func Unavailable(backend string, cause error) *DataError {
	return New(ErrCodeUnavailable, fmt.Sprintf("backend %s unavailable", backend), cause).
		WithDetail("backend", backend)
}

func QueryFailed(backend string, cause error) *DataError {
	return New(ErrCodeQueryFailed, fmt.Sprintf("query on %s failed", backend), cause).
		WithDetail("backend", backend)
}

func ScatterFailed(failedShards []int, cause error) *DataError {
	return New(ErrCodeScatterFailed, fmt.Sprintf("scatter-gather failed on shards %v", failedShards), cause).
		WithDetail("failed_shards", failedShards)
}

func ShardWriteFailed(id string, shardID int, cause error) *DataError {
	return New(ErrCodeShardWriteFailed,
		fmt.Sprintf("shard %d projection write failed for entity %q (primary write committed)", shardID, id), cause).
		WithDetail("id", id).
		WithDetail("shard_id", shardID)
}

// IsDataError checks if an error is a DataError
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var de *DataError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeQueryFailed
}
