package main

import (
	"log"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paz-rewards/internal/httpapi"
	pkgasynq "paz-rewards/pkg/asynq"
	"paz-rewards/pkg/config"
	"paz-rewards/pkg/db"
	"paz-rewards/pkg/gen"
	"paz-rewards/pkg/health"
	"paz-rewards/pkg/logger"
	"paz-rewards/pkg/notify"
	"paz-rewards/pkg/otelcol"
	"paz-rewards/pkg/profiling"
	"paz-rewards/pkg/redis"
	"paz-rewards/pkg/server"
	"paz-rewards/services/account"
	"paz-rewards/services/ledger"
	"paz-rewards/services/promo"
	"paz-rewards/services/redemption"
	"paz-rewards/services/task"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		gen.Module,
		notify.Module,
		health.Module,
		pkgasynq.Client,
		pkgasynq.Server,

		ledger.Module,
		account.Module,
		promo.Module,
		task.Module,
		redemption.Module,
		redemption.TaskModule,

		server.ProvideHTTPServer,
		httpapi.Module,

		fx.Invoke(
			migrate,
			registerTaskHandlers,
		),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&account.Account{},
		&ledger.Transaction{},
		&promo.PromoCode{},
		&promo.Redemption{},
		&redemption.Request{},
		&redemption.Availability{},
		&task.Task{},
		&task.Completion{},
	)
}

func registerTaskHandlers(mux *asynq.ServeMux, t *redemption.Task) {
	mux.HandleFunc(redemption.RedemptionNotify, t.HandleNotifyTask)
}
