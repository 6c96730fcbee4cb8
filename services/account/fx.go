package account

import (
	"go.uber.org/fx"

	"paz-rewards/pkg/config"
)

var Module = fx.Module("account.service",
	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config) int64 { return cfg.Rewards.ReconcileThreshold },
			fx.ResultTags(`name:"reconcile_threshold"`),
		),
		NewService,
	),
)
