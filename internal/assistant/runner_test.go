package assistant

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/spanishfactoria/textocorrector/internal/core/error"
	"github.com/spanishfactoria/textocorrector/internal/model"
)

type fakeService struct {
	script  []*Run
	cursor  int
	events  []string
	submits [][]ToolOutput

	messages       []Message
	addMessageErrs []error
	addedMessages  []string
	listRunsResult []Run
	cancelledRuns  []string
}

func (f *fakeService) pop() *Run {
	run := f.script[f.cursor]
	if f.cursor+1 < len(f.script) {
		f.cursor++
	}
	return run
}

func (f *fakeService) CreateThread(context.Context) (*Thread, error) {
	return &Thread{ID: "thread_1"}, nil
}

func (f *fakeService) GetThread(_ context.Context, id string) (*Thread, error) {
	return &Thread{ID: id}, nil
}

func (f *fakeService) AddMessage(_ context.Context, _, _, content string) (*Message, error) {
	if len(f.addMessageErrs) > 0 {
		err := f.addMessageErrs[0]
		f.addMessageErrs = f.addMessageErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.addedMessages = append(f.addedMessages, content)
	return &Message{ID: "msg_user", Role: "user", Text: content}, nil
}

func (f *fakeService) ListMessages(context.Context, string, int) ([]Message, error) {
	return f.messages, nil
}

func (f *fakeService) CreateRun(context.Context, string, string, string) (*Run, error) {
	f.events = append(f.events, "create")
	return f.pop(), nil
}

func (f *fakeService) GetRun(context.Context, string, string) (*Run, error) {
	f.events = append(f.events, "get")
	return f.pop(), nil
}

func (f *fakeService) ListRuns(context.Context, string, int) ([]Run, error) {
	return f.listRunsResult, nil
}

func (f *fakeService) SubmitToolOutputs(_ context.Context, _, _ string, outputs []ToolOutput) (*Run, error) {
	f.events = append(f.events, "submit")
	f.submits = append(f.submits, outputs)
	return f.pop(), nil
}

func (f *fakeService) CancelRun(_ context.Context, _, runID string) (*Run, error) {
	f.events = append(f.events, "cancel")
	f.cancelledRuns = append(f.cancelledRuns, runID)
	return &Run{ID: runID, Status: RunCancelled}, nil
}

func (f *fakeService) CreateAssistant(context.Context, Spec) (string, error) {
	return "asst_1", nil
}

type fakeExecutor struct {
	calls []string
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, name, _ string) (string, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", f.err
	}
	return `{"nivel_mcer":"B1"}`, nil
}

func newTestRunner(svc *fakeService, tools ToolExecutor) *Runner {
	r := NewRunner(svc, tools, model.RunConfig{MaxWait: 180})
	r.sleep = func(_ context.Context, _ time.Duration) error {
		svc.events = append(svc.events, "sleep")
		return nil
	}
	return r
}

func run(id, threadID string, status RunStatus) *Run {
	return &Run{ID: id, ThreadID: threadID, Status: status}
}

func TestExecuteServicesToolCallsWithoutSleeping(t *testing.T) {
	requiresAction := run("run_1", "thread_1", RunRequiresAction)
	requiresAction.ToolCalls = []ToolCall{{ID: "call_1", Name: "get_user_profile", Arguments: "{}"}}

	svc := &fakeService{
		script: []*Run{
			run("run_1", "thread_1", RunInProgress),
			requiresAction,
			run("run_1", "thread_1", RunInProgress),
			run("run_1", "thread_1", RunCompleted),
		},
		messages: []Message{
			{ID: "msg_2", Role: "assistant", Text: `{"saludo":"Hola"}`},
			{ID: "msg_1", Role: "user", Text: "corrige mi texto"},
		},
	}
	tools := &fakeExecutor{}
	r := newTestRunner(svc, tools)

	text, err := r.Execute(context.Background(), "thread_1", "asst_1", "")

	require.NoError(t, err)
	assert.Equal(t, `{"saludo":"Hola"}`, text)
	assert.Equal(t, []string{"get_user_profile"}, tools.calls)
	require.Len(t, svc.submits, 1)
	assert.Equal(t, "call_1", svc.submits[0][0].ToolCallID)

	// requires_action is serviced immediately: submit follows the get with
	// no sleep in between.
	assert.Equal(t, []string{"create", "sleep", "get", "submit", "sleep", "get"}, svc.events)
}

func TestExecuteSerializesToolErrorIntoOutput(t *testing.T) {
	requiresAction := run("run_1", "thread_1", RunRequiresAction)
	requiresAction.ToolCalls = []ToolCall{{ID: "call_1", Name: "get_error_statistics", Arguments: "{}"}}

	svc := &fakeService{
		script: []*Run{
			requiresAction,
			run("run_1", "thread_1", RunCompleted),
		},
		messages: []Message{{Role: "assistant", Text: "ok"}},
	}
	tools := &fakeExecutor{err: fmt.Errorf("redis unreachable")}
	r := newTestRunner(svc, tools)

	_, err := r.Execute(context.Background(), "thread_1", "asst_1", "")

	require.NoError(t, err, "a failing tool must not abort the run")
	require.Len(t, svc.submits, 1)
	assert.Contains(t, svc.submits[0][0].Output, `"error"`)
	assert.Contains(t, svc.submits[0][0].Output, "redis unreachable")
}

func TestExecuteClassifiesTokenRateLimit(t *testing.T) {
	failed := run("run_1", "thread_1", RunFailed)
	failed.LastError = &RunError{
		Code:    "rate_limit_exceeded",
		Message: "Rate limit reached for gpt-4-turbo: Limit 10000 tokens per min (TPM).",
	}
	svc := &fakeService{script: []*Run{failed}}
	r := newTestRunner(svc, &fakeExecutor{})

	_, err := r.Execute(context.Background(), "thread_1", "asst_1", "")

	require.Error(t, err)
	assert.Equal(t, errx.KindRateLimit, errx.KindOf(err))
}

func TestExecuteClassifiesTerminalFailures(t *testing.T) {
	cases := []struct {
		name string
		r    *Run
	}{
		{"failed", func() *Run {
			f := run("run_1", "thread_1", RunFailed)
			f.LastError = &RunError{Code: "server_error", Message: "something broke"}
			return f
		}()},
		{"cancelled", run("run_1", "thread_1", RunCancelled)},
		{"expired", run("run_1", "thread_1", RunExpired)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{script: []*Run{tc.r}}
			r := newTestRunner(svc, &fakeExecutor{})

			_, err := r.Execute(context.Background(), "thread_1", "asst_1", "")

			require.Error(t, err)
			assert.Equal(t, errx.KindTerminal, errx.KindOf(err))
		})
	}
}

func TestExecuteTimesOutAndCancels(t *testing.T) {
	svc := &fakeService{script: []*Run{run("run_1", "thread_1", RunInProgress)}}
	r := NewRunner(svc, &fakeExecutor{}, model.RunConfig{MaxWait: 10})

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	r.sleep = func(context.Context, time.Duration) error {
		clock = clock.Add(6 * time.Second)
		return nil
	}

	_, err := r.Execute(context.Background(), "thread_1", "asst_1", "")

	require.Error(t, err)
	assert.Equal(t, errx.KindTimeout, errx.KindOf(err))
	assert.Equal(t, []string{"run_1"}, svc.cancelledRuns)
}

func TestPollIntervalGrowsToCap(t *testing.T) {
	script := []*Run{run("run_1", "thread_1", RunInProgress)}
	for i := 0; i < 7; i++ {
		script = append(script, run("run_1", "thread_1", RunInProgress))
	}
	script = append(script, run("run_1", "thread_1", RunCompleted))

	svc := &fakeService{
		script:   script,
		messages: []Message{{Role: "assistant", Text: "ok"}},
	}
	r := NewRunner(svc, &fakeExecutor{}, model.RunConfig{MaxWait: 600})

	var intervals []float64
	r.sleep = func(_ context.Context, d time.Duration) error {
		intervals = append(intervals, d.Seconds())
		return nil
	}

	_, err := r.Execute(context.Background(), "thread_1", "asst_1", "")
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(intervals), 6)
	assert.InDelta(t, 1.0, intervals[0], 0.01)
	assert.InDelta(t, 1.5, intervals[1], 0.01)
	assert.InDelta(t, 2.25, intervals[2], 0.01)
	last := intervals[len(intervals)-1]
	assert.LessOrEqual(t, last, 5.0+0.01, "interval never exceeds the cap")
}

func TestSendUserMessageRecoversFromActiveRun(t *testing.T) {
	blocked := errx.NewKind(
		fmt.Errorf("%w: run run_0 is in progress", ErrActiveRun),
		errx.KindGeneral, errx.SystemErrorMessage)

	svc := &fakeService{
		addMessageErrs: []error{blocked},
		listRunsResult: []Run{{ID: "run_0", ThreadID: "thread_1", Status: RunInProgress}},
	}
	r := newTestRunner(svc, &fakeExecutor{})

	err := r.SendUserMessage(context.Background(), "thread_1", "hola")

	require.NoError(t, err)
	assert.Equal(t, []string{"run_0"}, svc.cancelledRuns)
	assert.Equal(t, []string{"hola"}, svc.addedMessages)
}

func TestSendUserMessagePropagatesOtherErrors(t *testing.T) {
	svc := &fakeService{
		addMessageErrs: []error{errx.NewKind(fmt.Errorf("boom"), errx.KindTerminal, errx.ServiceUnavailableMessage)},
	}
	r := newTestRunner(svc, &fakeExecutor{})

	err := r.SendUserMessage(context.Background(), "thread_1", "hola")

	require.Error(t, err)
	assert.Empty(t, svc.cancelledRuns)
}
