package redemption

import (
	"time"

	"go.uber.org/fx"

	"paz-rewards/pkg/config"
)

var Module = fx.Module("redemption.service",
	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config) time.Duration {
				return time.Duration(cfg.Rewards.ActivationExpiryDays) * 24 * time.Hour
			},
			fx.ResultTags(`name:"activation_expiry"`),
		),
		NewService,
	),
)
