package board

import (
	"errors"

	"github.com/hylla/dragboard/internal/domain"
)

// ErrUnknownTask and related errors describe board lookup and commit failures.
var (
	ErrUnknownTask     = errors.New("unknown task")
	ErrInvalidLane     = domain.ErrInvalidLane
	ErrDuplicateTask   = errors.New("duplicate task")
	ErrUnknownToken    = errors.New("unknown undo token")
	ErrSupersededToken = errors.New("undo token superseded by rollback")
	ErrRolledBack      = errors.New("move rolled back")
)
