package tenantcontext

import (
	"time"

	"github.com/smallbiznis/rollcall/internal/config"
	orgdomain "github.com/smallbiznis/rollcall/internal/organization/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("tenantcontext",
	fx.Provide(
		fx.Annotate(
			NewResolver,
			fx.ParamTags(``, ``, `optional:"true"`, ``),
		),
	),
	fx.Provide(func(repo orgdomain.Repository) Store { return repo }),
	fx.Provide(NewCookieOptions),
)

func NewCookieOptions(cfg config.Config) CookieOptions {
	days := cfg.Tenant.CacheTTLDays
	if days <= 0 {
		days = 30
	}
	return CookieOptions{
		Secure: cfg.Auth.CookieSecure,
		MaxAge: time.Duration(days) * 24 * time.Hour,
	}
}
