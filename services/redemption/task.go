package redemption

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"paz-rewards/pkg/notify"
)

var TaskModule = fx.Module("task.redemption",
	fx.Provide(NewNotifier, NewTask),
)

// Notifier enqueues operator notifications on the low-priority queue,
// keeping delivery fully decoupled from the transactional workflow.
type Notifier struct {
	asynq *asynq.Client
}

type NotifierParams struct {
	fx.In
	Asynq *asynq.Client
}

func NewNotifier(p NotifierParams) *Notifier {
	return &Notifier{asynq: p.Asynq}
}

func (n *Notifier) Enqueue(ctx context.Context, payload NotifyPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = n.asynq.EnqueueContext(ctx, asynq.NewTask(RedemptionNotify, body), asynq.Queue("low"))
	return err
}

// Task handles queued notification deliveries.
type Task struct {
	bot *notify.BotClient
}

type TaskParams struct {
	fx.In
	Bot *notify.BotClient `optional:"true"`
}

func NewTask(p TaskParams) *Task {
	return &Task{bot: p.Bot}
}

// HandleNotifyTask posts a human-readable status line to the operator
// channel. asynq retries transient failures; a permanent failure is only
// logged, never surfaced to the member.
func (t *Task) HandleNotifyTask(ctx context.Context, task *asynq.Task) error {
	var payload NotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	if t.bot == nil {
		zap.L().Debug("notifier disabled, dropping notification", zap.String("request_id", payload.RequestID))
		return nil
	}

	msg := fmt.Sprintf("Redemption %s\nRequest: %s\nUser: %s\nSubscription: %s (%s)",
		payload.Status, payload.RequestID, payload.MaskedEmail, payload.SubscriptionID, payload.Duration)

	if err := t.bot.SendMessage(ctx, msg); err != nil {
		zap.L().Warn("operator notification delivery failed",
			zap.String("request_id", payload.RequestID),
			zap.Error(err),
		)
		return err
	}

	return nil
}
