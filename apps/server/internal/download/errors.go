package download

import (
	"errors"
	"fmt"
	"net/http"
)

// InvalidURLError is returned when the input is not a recognisable GitHub
// repository URL.
type InvalidURLError struct {
	URL    string
	Reason string
}

// Error implements the error interface.
func (e InvalidURLError) Error() string {
	return fmt.Sprintf("invalid GitHub URL %q: %s", e.URL, e.Reason)
}

// AuthenticationError is returned when the caller's token does not match the
// server credential digest.
type AuthenticationError struct{}

// Error implements the error interface.
func (AuthenticationError) Error() string {
	return "invalid authentication token"
}

// ServerMisconfiguredError is returned for every job when the server has no
// GitHub credential configured.
type ServerMisconfiguredError struct {
	Missing string
}

// Error implements the error interface.
func (e ServerMisconfiguredError) Error() string {
	return fmt.Sprintf("server misconfigured: %s not configured", e.Missing)
}

// NotFoundError is returned when the requested path does not exist or yields
// no files.
type NotFoundError struct {
	Location RepoLocation
	Reason   string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s/%s@%s:/%s: %s", e.Location.Owner, e.Location.Repo, e.Location.Branch, e.Location.Path, e.Reason)
}

// RemoteErrorKind classifies a failed call against the hosting API.
type RemoteErrorKind string

// Remote error kinds.
const (
	RemoteNotFound  RemoteErrorKind = "not_found"
	RemoteForbidden RemoteErrorKind = "forbidden"
	RemoteAPI       RemoteErrorKind = "api"
)

// RemoteAPIError is returned when a listing or file download fails for reasons
// outside the caller's control.
type RemoteAPIError struct {
	Kind       RemoteErrorKind
	StatusCode int // zero for transport errors
	Op         string
	Err        error
}

// Error implements the error interface.
func (e RemoteAPIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d (%s): %v", e.Op, e.StatusCode, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e RemoteAPIError) Unwrap() error { return e.Err }

// NotDirectoryError is returned by a listing call whose target is a single
// file rather than a directory.
type NotDirectoryError struct {
	Path string
}

// Error implements the error interface.
func (e NotDirectoryError) Error() string {
	return fmt.Sprintf("expected directory but got file at %q", e.Path)
}

// InternalError wraps unexpected failures, typically filesystem errors while
// staging or archiving.
type InternalError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e InternalError) Error() string {
	return fmt.Sprintf("internal error: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e InternalError) Unwrap() error { return e.Err }

// StatusCode maps an error from Service.Download to the HTTP status the
// boundary should answer with.
func StatusCode(err error) int {
	var (
		invalid  InvalidURLError
		auth     AuthenticationError
		misconf  ServerMisconfiguredError
		notFound NotFoundError
		remote   RemoteAPIError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &auth):
		return http.StatusUnauthorized
	case errors.As(err, &misconf):
		return http.StatusInternalServerError
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &remote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
