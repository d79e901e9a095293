package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/adapter"
	"video-content-factory/internal/domain/ports/repository"
	"video-content-factory/internal/infra/events"
	"video-content-factory/internal/infra/metrics"
	"video-content-factory/internal/infra/publisher"
)

type Stage string

const (
	StageScript    Stage = "script"
	StageAudio     Stage = "audio"
	StageSubtitles Stage = "subtitles"
	StageRender    Stage = "render"
	StagePublish   Stage = "publish"
)

var stageStatus = map[Stage]model.JobStatus{
	StageScript:    model.JobStatusGeneratingScript,
	StageAudio:     model.JobStatusGeneratingAudio,
	StageSubtitles: model.JobStatusGeneratingSubtitles,
	StageRender:    model.JobStatusRendering,
	StagePublish:   model.JobStatusPublishing,
}

// Progress checkpoints written after each stage commits.
var stageProgress = map[Stage]int{
	StageScript:    10,
	StageAudio:     30,
	StageSubtitles: 50,
	StageRender:    70,
	StagePublish:   90,
}

// stagesFor maps the job type onto its ordered stage subset. Adding a
// stage means adding a variant here and one case in runStage.
func stagesFor(t model.JobType) []Stage {
	switch t {
	case model.JobTypeGenerateOnly:
		return []Stage{StageScript, StageAudio, StageSubtitles, StageRender}
	case model.JobTypeGenerateAndPublish:
		return []Stage{StageScript, StageAudio, StageSubtitles, StageRender, StagePublish}
	case model.JobTypePublishExisting:
		return []Stage{StagePublish}
	default:
		return nil
	}
}

// StageError marks a collaborator failure; the job fails, the loop does not.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// PublishProtocol is the slice of the publish decision protocol the
// runner needs.
type PublishProtocol interface {
	Execute(ctx context.Context, job *model.Job, platform model.Platform) (*model.PublishAttempt, error)
}

// StageRunner sequences the pipeline stages for one claimed job and owns
// every job-row mutation while the job is in flight.
type StageRunner struct {
	jobs     repository.JobRepository
	logs     repository.JobLogRepository
	script   adapter.ScriptGenerator
	audio    adapter.AudioSynthesizer
	subs     adapter.SubtitleTranscriber
	render   adapter.VideoRenderer
	protocol PublishProtocol
	pool     *Pool
	hub      *events.Hub
	notifier adapter.AlertNotifier

	stageTimeout time.Duration
	log          *zerolog.Logger
}

func NewStageRunner(
	jobs repository.JobRepository,
	logs repository.JobLogRepository,
	script adapter.ScriptGenerator,
	audio adapter.AudioSynthesizer,
	subs adapter.SubtitleTranscriber,
	render adapter.VideoRenderer,
	protocol PublishProtocol,
	pool *Pool,
	hub *events.Hub,
	notifier adapter.AlertNotifier,
	stageTimeout time.Duration,
	logger *zerolog.Logger,
) *StageRunner {
	runLog := logger.With().Str("component", "StageRunner").Logger()
	if stageTimeout <= 0 {
		stageTimeout = 10 * time.Minute
	}
	return &StageRunner{
		jobs:         jobs,
		logs:         logs,
		script:       script,
		audio:        audio,
		subs:         subs,
		render:       render,
		protocol:     protocol,
		pool:         pool,
		hub:          hub,
		notifier:     notifier,
		stageTimeout: stageTimeout,
		log:          &runLog,
	}
}

// Run executes the full stage list for a claimed (queued) job. All
// failures are captured on the job row; the returned error is only for
// the caller's log line.
func (r *StageRunner) Run(ctx context.Context, job *model.Job) error {
	start := time.Now()
	for _, stage := range stagesFor(job.JobType) {
		if err := r.runStage(ctx, job, stage); err != nil {
			r.failJob(ctx, job, stage, err)
			return err
		}
	}
	r.completeJob(ctx, job)
	r.log.Info().Int64("job_id", job.ID).Str("status", string(job.Status)).
		Dur("duration", time.Since(start)).Msg("job finished")
	return nil
}

func (r *StageRunner) runStage(ctx context.Context, job *model.Job, stage Stage) error {
	// Approved jobs arrive from the claim already flipped to publishing;
	// everything else transitions into the stage here.
	if job.Status != stageStatus[stage] {
		if err := job.Transition(stageStatus[stage]); err != nil {
			return &StageError{Stage: stage, Err: err}
		}
	}
	if err := r.jobs.Save(ctx, nil, job); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	r.publishEvent(ctx, job, stage)

	stageCtx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	defer cancel()

	start := time.Now()
	err := r.executeStage(stageCtx, job, stage)
	metrics.ObserveStage(string(stage), time.Since(start), err == nil)
	if err != nil {
		return &StageError{Stage: stage, Err: err}
	}

	job.SetProgress(stageProgress[stage])
	if err := r.jobs.Save(ctx, nil, job); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	r.appendLog(ctx, job, model.LogLevelInfo, stage, fmt.Sprintf("stage %s completed", stage))
	r.hub.JobUpdate(ctx, job.ID, string(job.Status), job.ProgressPercent)
	return nil
}

// executeStage dispatches to the collaborator for the stage. The heavy
// gate bounds simultaneous audio/render invocations across jobs.
func (r *StageRunner) executeStage(ctx context.Context, job *model.Job, stage Stage) error {
	switch stage {
	case StageScript:
		script, err := r.script.GenerateScript(ctx, job.Topic, adapter.StyleConfig{})
		if err != nil {
			return err
		}
		job.ScriptHook = script.Hook
		job.ScriptBody = script.Body
		job.ScriptCTA = script.CTA
		job.ScriptText = script.FullText
		return nil

	case StageAudio:
		release, err := r.pool.AcquireHeavy(ctx)
		if err != nil {
			return err
		}
		defer release()
		path, err := r.audio.SynthesizeAudio(ctx, job.ScriptText, adapter.VoiceConfig{})
		if err != nil {
			return err
		}
		job.AudioPath = path
		return nil

	case StageSubtitles:
		path, err := r.subs.TranscribeSubtitles(ctx, job.AudioPath)
		if err != nil {
			return err
		}
		job.SubtitlePath = path
		return nil

	case StageRender:
		release, err := r.pool.AcquireHeavy(ctx)
		if err != nil {
			return err
		}
		defer release()
		res, err := r.render.RenderVideo(ctx, adapter.RenderRequest{
			Topic: job.Topic,
			Script: adapter.Script{
				Hook: job.ScriptHook, Body: job.ScriptBody,
				CTA: job.ScriptCTA, FullText: job.ScriptText,
			},
			AudioPath:    job.AudioPath,
			SubtitlePath: job.SubtitlePath,
		})
		if err != nil {
			return err
		}
		job.VideoPath = res.VideoPath
		job.ThumbnailPath = res.ThumbnailPath
		return nil

	case StagePublish:
		return r.executePublish(ctx, job)

	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

// executePublish fans out one attempt per flagged platform. Individual
// attempt failures are recorded per platform; the stage only errors when
// every platform failed.
func (r *StageRunner) executePublish(ctx context.Context, job *model.Job) error {
	platforms := job.TargetPlatforms()
	if len(platforms) == 0 {
		return fmt.Errorf("no target platform flagged")
	}
	if job.PublishResults == nil {
		job.PublishResults = make(map[model.Platform]model.PublishResult)
	}

	allFailed := true
	for _, platform := range platforms {
		attempt, err := r.protocol.Execute(ctx, job, platform)
		if err != nil {
			return err
		}
		job.PublishResults[platform] = publisher.ResultFor(attempt)
		if attempt.Status != model.AttemptStatusFailed {
			allFailed = false
		}
		r.appendLog(ctx, job, model.LogLevelInfo, StagePublish,
			fmt.Sprintf("publish %s via %s: %s", platform, attempt.Strategy, attempt.Status))
	}
	if allFailed {
		return fmt.Errorf("all publish attempts failed")
	}
	return nil
}

func (r *StageRunner) completeJob(ctx context.Context, job *model.Job) {
	now := time.Now()
	switch job.JobType {
	case model.JobTypeGenerateOnly:
		if err := job.Transition(model.JobStatusReadyForReview); err != nil {
			r.log.Error().Err(err).Int64("job_id", job.ID).Msg("final transition")
			return
		}
		job.SetProgress(100)
		job.CompletedAt = &now

	default:
		if hasWaiting(job.PublishResults) {
			// Stay in publishing until every parked attempt is resolved
			// through the confirmation endpoint.
			r.appendLog(ctx, job, model.LogLevelInfo, StagePublish, "waiting for manual publish confirmation")
		} else {
			if err := job.Transition(model.JobStatusPublished); err != nil {
				r.log.Error().Err(err).Int64("job_id", job.ID).Msg("final transition")
				return
			}
			job.SetProgress(100)
			job.CompletedAt = &now
		}
	}

	if err := r.jobs.Save(ctx, nil, job); err != nil {
		r.log.Error().Err(err).Int64("job_id", job.ID).Msg("save finished job")
		return
	}
	if job.Status.Terminal() || job.Status == model.JobStatusReadyForReview {
		r.appendLog(ctx, job, model.LogLevelInfo, "", "pipeline complete")
	}
	metrics.IncJobFinished(string(job.Status))
	r.hub.JobUpdate(ctx, job.ID, string(job.Status), job.ProgressPercent)
}

func (r *StageRunner) failJob(ctx context.Context, job *model.Job, stage Stage, err error) {
	job.Fail(err.Error())
	if serr := r.jobs.Save(ctx, nil, job); serr != nil {
		r.log.Error().Err(serr).Int64("job_id", job.ID).Msg("save failed job")
	}
	r.appendLog(ctx, job, model.LogLevelError, stage, err.Error())
	metrics.IncJobFinished(string(model.JobStatusFailed))
	r.hub.JobUpdate(ctx, job.ID, string(job.Status), job.ProgressPercent)
	r.log.Error().Err(err).Int64("job_id", job.ID).Str("stage", string(stage)).Msg("job failed")
	if r.notifier != nil {
		_ = r.notifier.Alert(ctx, fmt.Sprintf("job %d failed at %s: %v", job.ID, stage, err))
	}
}

func (r *StageRunner) appendLog(ctx context.Context, job *model.Job, level model.LogLevel, stage Stage, msg string) {
	entry := model.NewJobLogEntry(job.ID, level, string(stage), msg)
	if err := r.logs.Append(ctx, nil, entry); err != nil {
		r.log.Error().Err(err).Int64("job_id", job.ID).Msg("append job log")
	}
}

func (r *StageRunner) publishEvent(ctx context.Context, job *model.Job, stage Stage) {
	r.hub.Publish(ctx, events.Event{
		Type:     events.EventSceneStep,
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.ProgressPercent,
		Scene:    string(stage),
	})
}

func hasWaiting(results map[model.Platform]model.PublishResult) bool {
	for _, res := range results {
		if res.Status == "waiting_confirm" {
			return true
		}
	}
	return false
}
