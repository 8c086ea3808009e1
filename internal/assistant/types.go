package assistant

import (
	"context"
	"errors"
)

// RunStatus is the remote generation job lifecycle state.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// InFlight reports whether the run may still make progress.
func (s RunStatus) InFlight() bool {
	switch s {
	case RunQueued, RunInProgress, RunRequiresAction, RunCancelling:
		return true
	}
	return false
}

// ErrActiveRun marks a message rejected because the thread already has a run
// in flight. Callers recover by settling the run and retrying.
var ErrActiveRun = errors.New("thread already has an active run")

// Thread is a remote conversation container.
type Thread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

// Message is one entry of a thread transcript.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"-"`
	CreatedAt int64  `json:"created_at"`
}

// ToolCall is a function invocation requested by a run.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolOutput is the serialized result of one tool call.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// RunError carries the remote failure detail of a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is a remote generation job bound to a thread.
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    RunStatus `json:"status"`
	ToolCalls []ToolCall
	LastError *RunError
}

// ToolDefinition is an entry of the function manifest advertised to the
// remote service, in its native wire shape.
type ToolDefinition map[string]any

// Spec describes an assistant to provision on demand.
type Spec struct {
	Name         string
	Instructions string
	Model        string
	Tools        []ToolDefinition
}

// Service is the remote Assistants API surface the orchestration layer
// depends on.
type Service interface {
	CreateThread(ctx context.Context) (*Thread, error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	AddMessage(ctx context.Context, threadID, role, content string) (*Message, error)
	ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error)
	CreateRun(ctx context.Context, threadID, assistantID, instructions string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	ListRuns(ctx context.Context, threadID string, limit int) ([]Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error)
	CancelRun(ctx context.Context, threadID, runID string) (*Run, error)
	CreateAssistant(ctx context.Context, spec Spec) (string, error)
}
