package untis

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrConfig marks an incomplete identity. The process must not start with it.
	ErrConfig = errors.New("untis: invalid configuration")
	// ErrAuthentication is returned when the provider rejects a login.
	ErrAuthentication = errors.New("untis: authentication failed")
	// ErrNotAuthenticated is returned for calls made with an expired session.
	ErrNotAuthenticated = errors.New("untis: not authenticated")
	// ErrPermissionDenied is returned when the identity may not read a resource (exams).
	ErrPermissionDenied = errors.New("untis: permission denied")
	// ErrUnknownGrade is returned by the router for an unregistered grade.
	ErrUnknownGrade = errors.New("untis: unknown grade")
)

// Provider error codes seen on the JSON-RPC endpoint.
const (
	codeBadCredentials   = -8504
	codeNoRight          = -8509
	codeNotAuthenticated = -8520
)

// RPCError is an application error reported by the provider. Code and Message
// are kept verbatim.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc %s -> %d %s", e.Method, e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	msg := strings.ToLower(e.Message)
	switch target {
	case ErrNotAuthenticated:
		return e.Code == codeNotAuthenticated || strings.Contains(msg, "not authenticated")
	case ErrPermissionDenied:
		return e.Code == codeNoRight || strings.Contains(msg, "no right") || strings.Contains(msg, "no allowed")
	case ErrAuthentication:
		return e.Code == codeBadCredentials || strings.Contains(msg, "bad credentials")
	}
	return false
}

// HTTPError is a non-2xx answer from either provider endpoint.
type HTTPError struct {
	Method string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: http %d", e.Method, e.Status)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Method, e.Status, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrNotAuthenticated:
		return e.Status == http.StatusUnauthorized
	case ErrPermissionDenied:
		return e.Status == http.StatusForbidden
	}
	return false
}

// IsNotAuthenticated reports whether err means the session has expired.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// IsPermissionDenied reports whether err is the provider refusing access.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
