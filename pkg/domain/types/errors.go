package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify pipeline failures. The stage runner records the
// matching kind on the stage result, and the HTTP controller maps
// bad_request to a 4xx response.
var (
	ErrTagBadRequest = goerr.NewTag("bad_request")
	ErrTagConfig     = goerr.NewTag("config")
	ErrTagAuth       = goerr.NewTag("auth")
	ErrTagBuild      = goerr.NewTag("build")
	ErrTagPush       = goerr.NewTag("push")
)

// ErrRunNotFound is returned by run ledgers when no run matches the given ID
var ErrRunNotFound = goerr.New("run not found")

// ErrorKind returns the taxonomy label of an error for stage results,
// metrics and notifications
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case goerr.HasTag(err, ErrTagBadRequest):
		return "bad_request"
	case goerr.HasTag(err, ErrTagAuth):
		return "auth"
	case goerr.HasTag(err, ErrTagBuild):
		return "build"
	case goerr.HasTag(err, ErrTagPush):
		return "push"
	case goerr.HasTag(err, ErrTagConfig):
		return "config"
	default:
		return "internal"
	}
}
