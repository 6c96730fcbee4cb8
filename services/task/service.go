package task

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"paz-rewards/pkg/db/option"
	"paz-rewards/pkg/errutil"
	"paz-rewards/pkg/repository"
	"paz-rewards/services/account"
	"paz-rewards/services/ledger"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	ledger    *ledger.Service
	quizQuota int

	tasks       repository.Repository[Task]
	completions repository.Repository[Completion]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Ledger *ledger.Service
	// QuizQuota caps quiz completions per account per UTC day.
	QuizQuota int `name:"quiz_daily_quota"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		ledger:    p.Ledger,
		quizQuota: p.QuizQuota,

		tasks:       repository.ProvideStore[Task](p.DB),
		completions: repository.ProvideStore[Completion](p.DB),
	}
}

func (s *Service) ListActive(ctx context.Context) ([]*Task, error) {
	return s.tasks.Find(ctx, &Task{IsActive: true}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"created_at": true},
	}))
}

// Complete credits a task's points atomically: completion row, earn
// transaction and balance credit commit together. Quiz completions past the
// daily quota are rejected.
func (s *Service) Complete(ctx context.Context, accountID, taskID string) (*Completion, error) {
	if accountID == "" || taskID == "" {
		return nil, errutil.ValidationFailed("account_id and task_id are required")
	}

	var completion *Completion

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tsk, err := s.tasks.WithTrx(tx).FindOne(ctx, &Task{ID: taskID})
		if err != nil {
			return errutil.Internal("failed to query task", errutil.WithErr(err))
		}
		if tsk == nil {
			return errutil.NotFound("task not found")
		}
		if !tsk.IsActive {
			return errutil.UnprocessableEntity("task is inactive")
		}

		// DailyLimit is per task; the quiz quota is a second cap spanning
		// every quiz task, so both are counted separately
		if tsk.DailyLimit > 0 {
			used, err := s.taskUsedToday(ctx, tx, accountID, tsk.ID)
			if err != nil {
				return err
			}
			if used >= int64(tsk.DailyLimit) {
				return errutil.UnprocessableEntity("daily limit reached")
			}
		}
		if tsk.Kind == KindQuiz && s.quizQuota > 0 {
			used, err := s.usedToday(ctx, tx, accountID, KindQuiz)
			if err != nil {
				return err
			}
			if used >= int64(s.quizQuota) {
				return errutil.UnprocessableEntity("daily limit reached")
			}
		}

		completion = &Completion{
			ID:        s.node.Generate().String(),
			AccountID: accountID,
			TaskID:    tsk.ID,
			Kind:      tsk.Kind,
			Points:    tsk.Points,
		}
		if err := s.completions.WithTrx(tx).Create(ctx, completion); err != nil {
			return errutil.Internal("failed to record completion", errutil.WithErr(err))
		}

		if _, err := s.ledger.Record(ctx, tx, ledger.RecordParams{
			AccountID:   accountID,
			Kind:        ledger.KindEarn,
			Points:      tsk.Points,
			Description: "Task: " + tsk.Title,
		}); err != nil {
			return err
		}

		credit := tx.Model(&account.Account{}).
			Where("id = ?", accountID).
			Updates(map[string]any{
				"points":       gorm.Expr("points + ?", tsk.Points),
				"total_earned": gorm.Expr("total_earned + ?", tsk.Points),
				"updated_at":   time.Now(),
			})
		if credit.Error != nil {
			return errutil.Internal("failed to credit account", errutil.WithErr(credit.Error))
		}
		if credit.RowsAffected == 0 {
			return errutil.NotFound("profile not found")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return completion, nil
}

// QuizAllowance is the quiz-limit check: today's usage measured against the
// configured quota, with the UTC-midnight reset time.
func (s *Service) QuizAllowance(ctx context.Context, accountID string) (*Allowance, error) {
	if accountID == "" {
		return nil, errutil.ValidationFailed("account_id is required")
	}

	used, err := s.usedToday(ctx, nil, accountID, KindQuiz)
	if err != nil {
		return nil, err
	}

	remaining := s.quizQuota - int(used)
	if s.quizQuota == 0 {
		remaining = -1 // unlimited
	} else if remaining < 0 {
		remaining = 0
	}

	return &Allowance{
		Quota:     s.quizQuota,
		Used:      int(used),
		Remaining: remaining,
		ResetsAt:  startOfDay(time.Now().UTC()).Add(24 * time.Hour),
	}, nil
}

func (s *Service) usedToday(ctx context.Context, tx *gorm.DB, accountID string, kind Kind) (int64, error) {
	return s.countToday(ctx, tx, "account_id = ? AND kind = ?", accountID, kind)
}

func (s *Service) taskUsedToday(ctx context.Context, tx *gorm.DB, accountID, taskID string) (int64, error) {
	return s.countToday(ctx, tx, "account_id = ? AND task_id = ?", accountID, taskID)
}

func (s *Service) countToday(ctx context.Context, tx *gorm.DB, cond string, args ...any) (int64, error) {
	db := s.db
	if tx != nil {
		db = tx
	}

	var used int64
	if err := db.WithContext(ctx).Model(&Completion{}).
		Where(cond, args...).
		Where("created_at >= ?", startOfDay(time.Now().UTC())).
		Count(&used).Error; err != nil {
		return 0, errutil.Internal("failed to count completions", errutil.WithErr(err))
	}

	return used, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ------------------------------------------------------------------
// Admin operations
// ------------------------------------------------------------------

type CreateParams struct {
	Title      string `json:"title"`
	Kind       Kind   `json:"kind"`
	Points     int64  `json:"points"`
	DailyLimit int    `json:"daily_limit"`
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*Task, error) {
	if p.Title == "" {
		return nil, errutil.ValidationFailed("title is required")
	}
	if !p.Kind.Valid() {
		return nil, errutil.ValidationFailed("kind must be ad, quiz or social")
	}
	if p.Points <= 0 {
		return nil, errutil.ValidationFailed("points must be > 0")
	}
	if p.DailyLimit < 0 {
		return nil, errutil.ValidationFailed("daily_limit must not be negative")
	}

	tsk := &Task{
		ID:         s.node.Generate().String(),
		Title:      p.Title,
		Kind:       p.Kind,
		Points:     p.Points,
		DailyLimit: p.DailyLimit,
		IsActive:   true,
	}
	if err := s.tasks.Create(ctx, tsk); err != nil {
		return nil, errutil.Internal("failed to create task", errutil.WithErr(err))
	}

	return tsk, nil
}

func (s *Service) List(ctx context.Context) ([]*Task, error) {
	return s.tasks.Find(ctx, nil, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"created_at": true},
	}))
}

type UpdateParams struct {
	ID         string  `json:"id"`
	Title      *string `json:"title"`
	Points     *int64  `json:"points"`
	DailyLimit *int    `json:"daily_limit"`
}

func (s *Service) Update(ctx context.Context, p UpdateParams) (*Task, error) {
	if p.ID == "" {
		return nil, errutil.ValidationFailed("id is required")
	}

	tsk, err := s.tasks.FindOne(ctx, &Task{ID: p.ID})
	if err != nil {
		return nil, errutil.Internal("failed to query task", errutil.WithErr(err))
	}
	if tsk == nil {
		return nil, errutil.NotFound("task not found")
	}

	updates := map[string]any{"updated_at": time.Now()}
	if p.Title != nil {
		if *p.Title == "" {
			return nil, errutil.ValidationFailed("title must not be empty")
		}
		updates["title"] = *p.Title
	}
	if p.Points != nil {
		if *p.Points <= 0 {
			return nil, errutil.ValidationFailed("points must be > 0")
		}
		updates["points"] = *p.Points
	}
	if p.DailyLimit != nil {
		if *p.DailyLimit < 0 {
			return nil, errutil.ValidationFailed("daily_limit must not be negative")
		}
		updates["daily_limit"] = *p.DailyLimit
	}

	if err := s.tasks.Update(ctx, p.ID, updates); err != nil {
		return nil, errutil.Internal("failed to update task", errutil.WithErr(err))
	}

	return s.tasks.FindOne(ctx, &Task{ID: p.ID})
}

func (s *Service) Toggle(ctx context.Context, id string) (*Task, error) {
	tsk, err := s.tasks.FindOne(ctx, &Task{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to query task", errutil.WithErr(err))
	}
	if tsk == nil {
		return nil, errutil.NotFound("task not found")
	}

	if err := s.tasks.Update(ctx, id, map[string]any{
		"is_active":  !tsk.IsActive,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, errutil.Internal("failed to toggle task", errutil.WithErr(err))
	}

	tsk.IsActive = !tsk.IsActive
	return tsk, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tsk, err := s.tasks.FindOne(ctx, &Task{ID: id})
	if err != nil {
		return errutil.Internal("failed to query task", errutil.WithErr(err))
	}
	if tsk == nil {
		return errutil.NotFound("task not found")
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		return errutil.Internal("failed to delete task", errutil.WithErr(err))
	}
	return nil
}
