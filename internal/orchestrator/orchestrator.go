// Package orchestrator ties the pipeline together: circuit breaker, thread
// resolution, run dispatch, extraction and validation of the structured
// correction.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spanishfactoria/textocorrector/internal/assistant"
	"github.com/spanishfactoria/textocorrector/internal/breaker"
	"github.com/spanishfactoria/textocorrector/internal/correction"
	errx "github.com/spanishfactoria/textocorrector/internal/core/error"
	"github.com/spanishfactoria/textocorrector/internal/model"
	"github.com/spanishfactoria/textocorrector/internal/prompts"
	"github.com/spanishfactoria/textocorrector/internal/thread"
	"github.com/spanishfactoria/textocorrector/internal/tools"
	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

// serviceName is the circuit breaker key for the remote assistant service.
const serviceName = "openai"

// Recorder persists correction history and usage metrics.
type Recorder interface {
	SaveCorrection(ctx context.Context, ownerID string, result *correction.Result) error
	RecordMetric(ctx context.Context, metric model.UsageMetric) error
}

// Request is one caller request through the pipeline.
type Request struct {
	// SystemInstructions overrides the task prompt when non-empty.
	SystemInstructions string
	// UserMessage is the full message sent to the assistant.
	UserMessage string
	TaskType    string
	// OriginalText is the raw student text, attached to results and error
	// records for display.
	OriginalText string
	// Language for explanations, defaults to Spanish.
	Language string
	// Session carries the thread binding; a nil session gets a transient one.
	Session *thread.Session
}

// Orchestrator coordinates one request end to end. Its Process method never
// fails: callers always receive a schema-complete record.
type Orchestrator struct {
	breaker  *breaker.Breaker
	svc      assistant.Service
	runner   *assistant.Runner
	threads  *thread.Manager
	registry *tools.Registry
	profiles tools.ProfileProvider
	recorder Recorder

	assistantCfg model.AssistantConfig
	retryCfg     model.RetryConfig
	refreshEvery int

	mu           sync.Mutex
	assistantIDs map[string]string

	now func() time.Time
}

// Options carries the orchestrator dependencies.
type Options struct {
	Breaker      *breaker.Breaker
	Service      assistant.Service
	Runner       *assistant.Runner
	Threads      *thread.Manager
	Registry     *tools.Registry
	Profiles     tools.ProfileProvider
	Recorder     Recorder
	AssistantCfg model.AssistantConfig
	RetryCfg     model.RetryConfig
	ThreadCfg    model.ThreadConfig
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		breaker:      opts.Breaker,
		svc:          opts.Service,
		runner:       opts.Runner,
		threads:      opts.Threads,
		registry:     opts.Registry,
		profiles:     opts.Profiles,
		recorder:     opts.Recorder,
		assistantCfg: opts.AssistantCfg,
		retryCfg:     opts.RetryCfg,
		refreshEvery: opts.ThreadCfg.ProfileRefreshEvery,
		assistantIDs: map[string]string{},
		now:          time.Now,
	}
}

// Process runs one request through the pipeline and returns the raw
// assistant text plus the validated record. It never returns an error and
// never panics; failures come back as an error-shaped record carrying a
// user-facing message and the original input.
func (o *Orchestrator) Process(ctx context.Context, req Request) (raw string, result *correction.Result) {
	started := o.now()
	requestID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("request_id", requestID).Interface("panic", r).Msg("pipeline panicked")
			raw, result = "", correction.ErrorResult(errx.SystemErrorMessage, req.OriginalText)
		}
	}()

	if req.Session == nil {
		req.Session = &thread.Session{}
	}

	logx.Info().
		Str("request_id", requestID).
		Str("task_type", req.TaskType).
		Str("ownerID", req.Session.OwnerID).
		Int("input_length", len(req.OriginalText)).
		Msg("processing request")

	if !o.breaker.CanExecute(serviceName) {
		logx.Warn().Str("request_id", requestID).Msg("circuit breaker open, refusing request")
		return "", correction.ErrorResult(errx.ServiceUnavailableMessage, req.OriginalText)
	}

	raw, err := o.converse(ctx, &req)
	if err != nil {
		logx.Error().Str("request_id", requestID).Err(err).Msg("request failed")
		o.recordMetric(ctx, req, started, false, false)
		return "", correction.ErrorResult(errx.UserMessage(err), req.OriginalText)
	}

	result, complete := o.structure(ctx, req, raw)
	o.threads.NoteExchange(ctx, req.Session)
	o.recordMetric(ctx, req, started, !result.IsError(), complete)
	return raw, result
}

// converse drives the remote exchange with retries. A rate-limited attempt
// downgrades to the ultra-concise prompt; a terminal failure resets the
// owner's thread so the next request starts clean.
func (o *Orchestrator) converse(ctx context.Context, req *Request) (string, error) {
	rateLimited := false

	var raw string
	err := withRetry(ctx, o.retryCfg, func(ctx context.Context, attempt int) error {
		instructions := req.SystemInstructions
		if instructions == "" {
			instructions = prompts.ForTask(req.TaskType, req.Language)
		}
		if rateLimited {
			logx.Info().Int("attempt", attempt).Msg("retrying with ultra-concise prompt after rate limit")
			instructions = prompts.UltraConcise(req.Language)
		}

		text, attemptErr := o.attempt(ctx, req, instructions)
		if attemptErr != nil {
			o.breaker.RecordFailure(serviceName)
			switch errx.KindOf(attemptErr) {
			case errx.KindRateLimit:
				rateLimited = true
			case errx.KindTerminal:
				if resetErr := o.threads.Reset(ctx, req.Session); resetErr != nil {
					logx.Warn().Err(resetErr).Msg("thread reset after terminal failure did not complete")
				}
			}
			return attemptErr
		}

		o.breaker.RecordSuccess(serviceName)
		raw = text
		return nil
	})
	return raw, err
}

func (o *Orchestrator) attempt(ctx context.Context, req *Request, instructions string) (string, error) {
	if !o.breaker.CanExecute(serviceName) {
		return "", errx.NewKind(
			fmt.Errorf("circuit open for %s", serviceName),
			errx.KindUnavailable, errx.ServiceUnavailableMessage)
	}

	threadID, err := o.threads.Resolve(ctx, req.Session)
	if err != nil {
		return "", err
	}

	if req.Session.NeedsProfileRefresh(o.refreshEvery) {
		o.refreshProfileContext(ctx, req.Session, threadID)
	}

	if err := o.runner.SendUserMessage(ctx, threadID, req.UserMessage); err != nil {
		return "", err
	}

	assistantID, err := o.assistantFor(ctx, req.TaskType, req.Language)
	if err != nil {
		return "", err
	}
	return o.runner.Execute(ctx, threadID, assistantID, instructions)
}

func (o *Orchestrator) refreshProfileContext(ctx context.Context, session *thread.Session, threadID string) {
	if session.OwnerID == "" {
		return
	}
	profile, err := o.profiles.OwnerProfile(ctx, session.OwnerID)
	if err != nil {
		logx.Debug().Err(err).Str("ownerID", session.OwnerID).Msg("no profile to refresh")
		return
	}
	if err := o.runner.SendUserMessage(ctx, threadID, prompts.ContextRefresh(profile)); err != nil {
		logx.Warn().Err(err).Msg("profile context refresh failed")
	}
}

// structure turns the raw assistant text into a validated record and
// persists the correction when an owner is known. The returned flag reports
// whether the reply arrived schema-complete or the normalizer had to fill
// it in; it feeds the usage metric so degraded replies stay visible.
func (o *Orchestrator) structure(ctx context.Context, req Request, raw string) (*correction.Result, bool) {
	data := correction.Extract(raw)
	complete := prompts.IsComplete(data)
	if !complete {
		logx.Warn().Str("task_type", req.TaskType).Msg("assistant reply incomplete, normalizer filling defaults")
	}
	result := correction.Normalize(data, req.OriginalText)

	if req.Session.OwnerID != "" && req.TaskType != prompts.TaskExercises && !result.IsError() {
		if err := o.recorder.SaveCorrection(ctx, req.Session.OwnerID, result); err != nil {
			logx.Warn().Err(err).Str("ownerID", req.Session.OwnerID).Msg("failed to persist correction")
		}
	}
	return result, complete
}

// assistantFor resolves the assistant id for a task, provisioning one on
// demand when no pre-configured id exists.
func (o *Orchestrator) assistantFor(ctx context.Context, taskType, language string) (string, error) {
	if id := o.configuredAssistant(taskType); id != "" {
		return id, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if id, ok := o.assistantIDs[taskType]; ok {
		return id, nil
	}

	spec := assistant.Spec{
		Name:         fmt.Sprintf("corrector-ele-%s", taskType),
		Instructions: prompts.ForTask(taskType, language),
		Model:        o.assistantCfg.Model,
		Tools:        o.registry.Manifest(),
	}
	id, err := o.svc.CreateAssistant(ctx, spec)
	if err != nil {
		return "", err
	}
	o.assistantIDs[taskType] = id
	return id, nil
}

func (o *Orchestrator) configuredAssistant(taskType string) string {
	switch taskType {
	case prompts.TaskExercises:
		return o.assistantCfg.ExercisesAssistantID
	case prompts.TaskCorrection:
		return o.assistantCfg.CorrectionAssistantID
	default:
		return o.assistantCfg.DefaultAssistantID
	}
}

func (o *Orchestrator) recordMetric(ctx context.Context, req Request, started time.Time, success, complete bool) {
	metric := model.UsageMetric{
		Model:       o.assistantCfg.Model,
		ElapsedSecs: o.now().Sub(started).Seconds(),
		InputLength: len(req.OriginalText),
		Success:     success,
		Complete:    complete,
		Timestamp:   o.now().Unix(),
	}
	if err := o.recorder.RecordMetric(ctx, metric); err != nil {
		logx.Debug().Err(err).Msg("metric not recorded")
	}
}
