package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service checks whether a user may perform an action inside an org.
type Service interface {
	Authorize(ctx context.Context, userID string, orgID snowflake.ID, object string, action string) error
}

var (
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
)
