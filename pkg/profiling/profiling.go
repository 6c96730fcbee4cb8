package profiling

import (
	"context"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"paz-rewards/pkg/config"
)

var Module = fx.Module("profiling", fx.Invoke(Run))

// Run starts continuous profiling when a pyroscope address is configured.
func Run(lc fx.Lifecycle, cfg *config.Config) error {
	if !cfg.Pyroscope.Enable {
		return nil
	}

	zap.L().Info("starting pyroscope",
		zap.String("app_name", cfg.AppName),
		zap.String("pyroscope_addr", cfg.Pyroscope.Addr),
	)

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.AppName,
		ServerAddress:   cfg.Pyroscope.Addr,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"service_name": cfg.AppName,
			"env":          cfg.AppEnv,
		},
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return profiler.Stop()
		},
	})

	return nil
}
