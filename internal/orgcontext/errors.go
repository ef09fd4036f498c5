package orgcontext

import "errors"

// ErrOrgRequired is returned by services that run without an active org on
// the context.
var ErrOrgRequired = errors.New("organization context required")
