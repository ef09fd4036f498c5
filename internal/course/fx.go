package course

import (
	"github.com/smallbiznis/rollcall/internal/course/repository"
	"github.com/smallbiznis/rollcall/internal/course/service"
	"go.uber.org/fx"
)

var Module = fx.Module("course.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
