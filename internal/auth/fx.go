package auth

import (
	"github.com/smallbiznis/rollcall/internal/auth/domain"
	"github.com/smallbiznis/rollcall/internal/auth/jwt"
	"github.com/smallbiznis/rollcall/internal/auth/session"
	"go.uber.org/fx"
)

// Module verifies identity provider tokens. There is no local sign-in.
var Module = fx.Module("auth",
	fx.Provide(
		jwt.NewProvider,
		func(p *jwt.Provider) domain.Provider { return p },
		session.NewManager,
	),
)
