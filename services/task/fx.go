package task

import (
	"go.uber.org/fx"

	"paz-rewards/pkg/config"
)

var Module = fx.Module("task.service",
	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config) int { return cfg.Rewards.QuizDailyQuota },
			fx.ResultTags(`name:"quiz_daily_quota"`),
		),
		NewService,
	),
)
