package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	errx "github.com/spanishfactoria/textocorrector/internal/core/error"
	"github.com/spanishfactoria/textocorrector/internal/model"
	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

// ToolExecutor services function calls requested by a run.
type ToolExecutor interface {
	Execute(ctx context.Context, name, arguments string) (string, error)
}

// Runner drives a generation job to completion: it polls with growing
// intervals, services tool calls as they are requested and classifies
// terminal failures.
type Runner struct {
	svc   Service
	tools ToolExecutor
	cfg   model.RunConfig

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewRunner builds a Runner, applying defaults for non-positive config values.
func NewRunner(svc Service, tools ToolExecutor, cfg model.RunConfig) *Runner {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 180
	}
	if cfg.InitialPollSeconds <= 0 {
		cfg.InitialPollSeconds = 1
	}
	if cfg.MaxPollSeconds <= 0 {
		cfg.MaxPollSeconds = 5
	}
	if cfg.PollGrowthFactor <= 1 {
		cfg.PollGrowthFactor = 1.5
	}
	if cfg.CancelSettleWait <= 0 {
		cfg.CancelSettleWait = 2
	}
	return &Runner{
		svc:   svc,
		tools: tools,
		cfg:   cfg,
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// SendUserMessage appends a user message to the thread. When the thread is
// blocked by a leftover in-flight run, the run is cancelled, given a moment
// to settle and the message is sent once more.
func (r *Runner) SendUserMessage(ctx context.Context, threadID, content string) error {
	_, err := r.svc.AddMessage(ctx, threadID, "user", content)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrActiveRun) {
		return err
	}

	logx.Warn().Str("thread_id", threadID).Msg("thread blocked by active run, settling before retry")
	if settleErr := r.settleActiveRun(ctx, threadID); settleErr != nil {
		return settleErr
	}
	_, err = r.svc.AddMessage(ctx, threadID, "user", content)
	return err
}

func (r *Runner) settleActiveRun(ctx context.Context, threadID string) error {
	runs, err := r.svc.ListRuns(ctx, threadID, 5)
	if err != nil {
		return err
	}
	for _, run := range runs {
		if !run.Status.InFlight() {
			continue
		}
		logx.Info().
			Str("thread_id", threadID).
			Str("run_id", run.ID).
			Str("status", string(run.Status)).
			Msg("cancelling leftover run")
		if _, err := r.svc.CancelRun(ctx, threadID, run.ID); err != nil {
			logx.Warn().Err(err).Str("run_id", run.ID).Msg("cancel failed, continuing anyway")
		}
	}
	return r.sleep(ctx, time.Duration(r.cfg.CancelSettleWait)*time.Second)
}

// Execute starts a run on the thread, waits for it to finish and returns the
// newest assistant message text.
func (r *Runner) Execute(ctx context.Context, threadID, assistantID, instructions string) (string, error) {
	run, err := r.svc.CreateRun(ctx, threadID, assistantID, instructions)
	if err != nil {
		return "", err
	}
	if err := r.await(ctx, run); err != nil {
		return "", err
	}
	return r.latestAssistantText(ctx, threadID)
}

// await polls the run until it completes, servicing tool calls inline. The
// poll interval starts small and grows geometrically to a cap; the whole
// wait is bounded by a wall-clock budget.
func (r *Runner) await(ctx context.Context, run *Run) error {
	deadline := r.now().Add(time.Duration(r.cfg.MaxWait) * time.Second)
	interval := r.cfg.InitialPollSeconds
	polls := 0

	for {
		switch run.Status {
		case RunCompleted:
			return nil

		case RunRequiresAction:
			next, err := r.serviceToolCalls(ctx, run)
			if err != nil {
				return err
			}
			// The submit response already carries the next status, poll
			// again without sleeping.
			run = next
			continue

		case RunFailed:
			return classifyRunFailure(run)

		case RunCancelled, RunExpired, RunIncomplete:
			return errx.NewKind(
				fmt.Errorf("run %s ended as %s", run.ID, run.Status),
				errx.KindTerminal, errx.ServiceUnavailableMessage)
		}

		if r.now().After(deadline) {
			logx.Warn().Str("run_id", run.ID).Msg("run exceeded wait budget, cancelling")
			if _, err := r.svc.CancelRun(ctx, run.ThreadID, run.ID); err != nil {
				logx.Warn().Err(err).Str("run_id", run.ID).Msg("budget cancel failed")
			}
			return errx.NewKind(
				fmt.Errorf("run %s exceeded %ds wait budget", run.ID, r.cfg.MaxWait),
				errx.KindTimeout, errx.TimeoutMessage)
		}

		if err := r.sleep(ctx, time.Duration(interval*float64(time.Second))); err != nil {
			return errx.NewKind(err, errx.KindTimeout, errx.TimeoutMessage)
		}
		interval *= r.cfg.PollGrowthFactor
		if interval > r.cfg.MaxPollSeconds {
			interval = r.cfg.MaxPollSeconds
		}

		polls++
		if polls%5 == 0 {
			logx.Debug().
				Str("run_id", run.ID).
				Str("status", string(run.Status)).
				Int("polls", polls).
				Msg("still waiting for run")
		}

		refreshed, err := r.svc.GetRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			return err
		}
		run = refreshed
	}
}

// serviceToolCalls executes every requested tool and submits the outputs in
// one batch. A failing tool never aborts the run; its error is serialized
// into the output so the model can react to it.
func (r *Runner) serviceToolCalls(ctx context.Context, run *Run) (*Run, error) {
	outputs := make([]ToolOutput, 0, len(run.ToolCalls))
	for _, call := range run.ToolCalls {
		logx.Info().
			Str("run_id", run.ID).
			Str("tool", call.Name).
			Msg("servicing tool call")

		output, err := r.tools.Execute(ctx, call.Name, call.Arguments)
		if err != nil {
			logx.Warn().Err(err).Str("tool", call.Name).Msg("tool call failed")
			payload, _ := json.Marshal(map[string]string{"error": err.Error()})
			output = string(payload)
		}
		outputs = append(outputs, ToolOutput{ToolCallID: call.ID, Output: output})
	}

	next, err := r.svc.SubmitToolOutputs(ctx, run.ThreadID, run.ID, outputs)
	if err != nil {
		return nil, errx.NewKind(
			fmt.Errorf("submit tool outputs for run %s: %w", run.ID, err),
			errx.KindToolError, errx.SystemErrorMessage)
	}
	return next, nil
}

func (r *Runner) latestAssistantText(ctx context.Context, threadID string) (string, error) {
	messages, err := r.svc.ListMessages(ctx, threadID, 10)
	if err != nil {
		return "", err
	}
	for _, msg := range messages {
		if msg.Role == "assistant" && msg.Text != "" {
			return msg.Text, nil
		}
	}
	return "", errx.NewKind(
		fmt.Errorf("no assistant message in thread %s after completed run", threadID),
		errx.KindTerminal, errx.SystemErrorMessage)
}

// classifyRunFailure separates token throttling, which is worth retrying
// with a leaner prompt, from genuinely terminal failures.
func classifyRunFailure(run *Run) error {
	code, message := "", ""
	if run.LastError != nil {
		code, message = run.LastError.Code, run.LastError.Message
	}
	if code == "rate_limit_exceeded" || strings.Contains(message, "tokens per min (TPM)") {
		return errx.NewKind(
			fmt.Errorf("run %s rate limited: %s", run.ID, message),
			errx.KindRateLimit, errx.RateLimitMessage)
	}
	return errx.NewKind(
		fmt.Errorf("run %s failed: %s %s", run.ID, code, message),
		errx.KindTerminal, errx.ServiceUnavailableMessage)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
