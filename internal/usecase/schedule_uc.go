package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/infra/scheduler"
)

// ScheduleUseCase fronts the recurring trigger registry and the one-shot
// day planner for the web surface.
type ScheduleUseCase struct {
	recurring *scheduler.Recurring
	planner   *scheduler.Planner
	log       *zerolog.Logger
}

func NewScheduleUseCase(recurring *scheduler.Recurring, planner *scheduler.Planner, logger *zerolog.Logger) *ScheduleUseCase {
	ucLog := logger.With().Str("component", "ScheduleUseCase").Logger()
	return &ScheduleUseCase{recurring: recurring, planner: planner, log: &ucLog}
}

// Reload re-syncs cron triggers with current account policies, e.g.
// after an account's schedule changed.
func (uc *ScheduleUseCase) Reload(ctx context.Context) error {
	return uc.recurring.Reload(ctx)
}

// Triggers lists active recurring triggers and their next fire times.
func (uc *ScheduleUseCase) Triggers() []scheduler.TriggerInfo {
	return uc.recurring.Triggers()
}

// TriggerNow materializes a job for the account immediately, bypassing
// the cooldown guard.
func (uc *ScheduleUseCase) TriggerNow(ctx context.Context, accountID int64, platform model.Platform) (*model.Job, error) {
	return uc.recurring.Materialize(ctx, accountID, platform, model.TopicSourceAuto, true)
}

// PlanDay lays out one scheduled job per platform on the target date.
func (uc *ScheduleUseCase) PlanDay(ctx context.Context, accountID int64, date time.Time, platforms []model.Platform, topic string) ([]*model.Job, error) {
	return uc.planner.PlanDay(ctx, accountID, date, platforms, topic)
}
