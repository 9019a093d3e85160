package editor

import (
	"errors"

	"github.com/nuetzliches/routedit/internal/routeconfig"
)

var (
	// ErrSuppressionActive rejects a nested hydration.
	ErrSuppressionActive = errors.New("editor: change suppression already active")
	// ErrBoundary is returned by MoveRoute when the target index is out of range.
	ErrBoundary       = errors.New("editor: route is already at the boundary")
	ErrUnknownRoute   = errors.New("editor: route does not belong to this model")
	ErrUnknownHost    = errors.New("editor: host does not belong to this route")
	ErrNoSelection    = errors.New("editor: nothing selected")
	ErrBlankScope     = errors.New("editor: scope is blank")
	ErrDuplicateScope = errors.New("editor: scope already allowed")
	ErrUnknownScope   = errors.New("editor: scope is not allowed on this route")
)

// ValidationError is the aggregate save-gate failure.
type ValidationError = routeconfig.ValidationError
