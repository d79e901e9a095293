package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
)

// minSlotGap is the minimum spacing between two scheduled jobs on the
// same day for one account.
const minSlotGap = 90 * time.Minute

// postingHours ranks candidate posting hours per platform, best first.
// Weekends shift audiences later in the morning, so the tables differ.
var postingHours = map[model.Platform]struct{ weekday, weekend []int }{
	model.PlatformYouTube:   {weekday: []int{17, 15, 12, 20}, weekend: []int{10, 11, 15, 19}},
	model.PlatformTikTok:    {weekday: []int{19, 21, 12, 16}, weekend: []int{11, 13, 19, 21}},
	model.PlatformInstagram: {weekday: []int{12, 18, 20, 9}, weekend: []int{10, 12, 17, 20}},
}

// Planner lays out one-shot publish slots for a target day, keeping
// platform-preferred hours while avoiding clustering with jobs already
// scheduled for the account.
type Planner struct {
	jobs repository.JobRepository
	loc  *time.Location
	log  *zerolog.Logger
}

func NewPlanner(jobs repository.JobRepository, loc *time.Location, logger *zerolog.Logger) *Planner {
	if loc == nil {
		loc = time.UTC
	}
	plannerLog := logger.With().Str("component", "Planner").Logger()
	return &Planner{jobs: jobs, loc: loc, log: &plannerLog}
}

// PlanDay creates one scheduled job per requested platform on the given
// date. Jobs are created pending with scheduled_at set, so the due-job
// sweep picks them up when the slot arrives.
func (p *Planner) PlanDay(ctx context.Context, accountID int64, date time.Time, platforms []model.Platform, topic string) ([]*model.Job, error) {
	if len(platforms) == 0 {
		platforms = model.AllPlatforms()
	}
	existing, err := p.jobs.ListScheduledOn(ctx, accountID, date)
	if err != nil {
		return nil, fmt.Errorf("list scheduled jobs: %w", err)
	}
	taken := make([]time.Time, 0, len(existing)+len(platforms))
	for _, j := range existing {
		if j.ScheduledAt != nil {
			taken = append(taken, *j.ScheduledAt)
		}
	}

	created := make([]*model.Job, 0, len(platforms))
	for _, platform := range platforms {
		slot, ok := p.bestSlot(platform, date, taken)
		if !ok {
			p.log.Warn().Int64("account_id", accountID).Str("platform", string(platform)).
				Str("date", date.Format("2006-01-02")).Msg("no free slot, platform skipped")
			continue
		}
		job := model.NewJob(accountID, model.JobTypeGenerateAndPublish, topic, model.TopicSourceBulkAuto)
		setPlatformFlag(job, platform)
		job.ScheduledAt = &slot
		if err := p.jobs.Save(ctx, nil, job); err != nil {
			return created, fmt.Errorf("save planned job for %s: %w", platform, err)
		}
		taken = append(taken, slot)
		created = append(created, job)
	}
	sort.Slice(created, func(i, j int) bool { return created[i].ScheduledAt.Before(*created[j].ScheduledAt) })
	return created, nil
}

// bestSlot walks the platform's ranked hours and returns the first one
// at least minSlotGap away from every already taken slot that day.
func (p *Planner) bestSlot(platform model.Platform, date time.Time, taken []time.Time) (time.Time, bool) {
	hours, ok := postingHours[platform]
	if !ok {
		return time.Time{}, false
	}
	candidates := hours.weekday
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		candidates = hours.weekend
	}
	for _, hour := range candidates {
		slot := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, p.loc)
		if clearOf(slot, taken) {
			return slot, true
		}
		// Nudge by half the gap before giving up on this hour.
		nudged := slot.Add(minSlotGap / 2)
		if nudged.Day() == slot.Day() && clearOf(nudged, taken) {
			return nudged, true
		}
	}
	return time.Time{}, false
}

func clearOf(slot time.Time, taken []time.Time) bool {
	for _, t := range taken {
		d := slot.Sub(t)
		if d < 0 {
			d = -d
		}
		if d < minSlotGap {
			return false
		}
	}
	return true
}
