package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is returned when a name uniqueness constraint would
	// be violated (project name per owner, mode name per project).
	ErrDuplicateName = errors.New("name already exists")

	// ErrSelfGrant is returned when an access edge from a project to
	// itself is requested.
	ErrSelfGrant = errors.New("project cannot grant access to itself")

	// ErrNoActiveSession is returned by operations that require an active
	// session when the user has none.
	ErrNoActiveSession = errors.New("no active session")

	// ErrInvalidTemperature is returned when a temperature value is not a
	// number in [0.0, 2.0].
	ErrInvalidTemperature = errors.New("temperature must be a number in [0.0..2.0]")

	// ErrInvalidContextMode is returned for context modes outside
	// project/acl_mentions/global.
	ErrInvalidContextMode = errors.New("invalid context mode")

	// ErrInvalidToolsConfig is returned when a mode's tools config is
	// set to something other than valid JSON.
	ErrInvalidToolsConfig = errors.New("tools config must be valid JSON")

	// ErrDailyLimitExceeded is returned when a user's daily token budget
	// is exhausted.
	ErrDailyLimitExceeded = errors.New("daily token limit exceeded")
)
