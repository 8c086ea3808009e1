package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	errx "github.com/spanishfactoria/textocorrector/internal/core/error"
	"github.com/spanishfactoria/textocorrector/internal/model"
	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

// Client talks to an OpenAI-compatible Assistants v2 API over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient builds a Client from config. It fails fast on a missing API key
// so misconfiguration surfaces at startup, not on the first request.
func NewClient(cfg model.AssistantConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errx.New(errors.New("missing api key"), http.StatusInternalServerError, errx.SystemErrorMessage)
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("OpenAI-Beta", "assistants=v2").
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &Client{http: httpc}, nil
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

type threadPayload struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

type messagePayload struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
	Content   []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

type messageListPayload struct {
	Data []messagePayload `json:"data"`
}

type runPayload struct {
	ID             string `json:"id"`
	ThreadID       string `json:"thread_id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
	LastError *RunError `json:"last_error"`
}

type runListPayload struct {
	Data []runPayload `json:"data"`
}

func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var out threadPayload
	if err := c.post(ctx, "/threads", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return &Thread{ID: out.ID, CreatedAt: out.CreatedAt}, nil
}

func (c *Client) GetThread(ctx context.Context, threadID string) (*Thread, error) {
	var out threadPayload
	if err := c.get(ctx, "/threads/"+threadID, nil, &out); err != nil {
		return nil, err
	}
	return &Thread{ID: out.ID, CreatedAt: out.CreatedAt}, nil
}

func (c *Client) AddMessage(ctx context.Context, threadID, role, content string) (*Message, error) {
	body := map[string]any{"role": role, "content": content}
	var out messagePayload
	if err := c.post(ctx, "/threads/"+threadID+"/messages", body, &out); err != nil {
		return nil, err
	}
	return decodeMessage(out), nil
}

func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var out messageListPayload
	query := map[string]string{"limit": fmt.Sprintf("%d", limit), "order": "desc"}
	if err := c.get(ctx, "/threads/"+threadID+"/messages", query, &out); err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(out.Data))
	for _, m := range out.Data {
		messages = append(messages, *decodeMessage(m))
	}
	return messages, nil
}

func (c *Client) CreateRun(ctx context.Context, threadID, assistantID, instructions string) (*Run, error) {
	body := map[string]any{"assistant_id": assistantID}
	if instructions != "" {
		body["instructions"] = instructions
	}
	var out runPayload
	if err := c.post(ctx, "/threads/"+threadID+"/runs", body, &out); err != nil {
		return nil, err
	}
	return decodeRun(out), nil
}

func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var out runPayload
	if err := c.get(ctx, "/threads/"+threadID+"/runs/"+runID, nil, &out); err != nil {
		return nil, err
	}
	return decodeRun(out), nil
}

func (c *Client) ListRuns(ctx context.Context, threadID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 5
	}
	var out runListPayload
	query := map[string]string{"limit": fmt.Sprintf("%d", limit), "order": "desc"}
	if err := c.get(ctx, "/threads/"+threadID+"/runs", query, &out); err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(out.Data))
	for _, r := range out.Data {
		runs = append(runs, *decodeRun(r))
	}
	return runs, nil
}

func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	body := map[string]any{"tool_outputs": outputs}
	var out runPayload
	if err := c.post(ctx, "/threads/"+threadID+"/runs/"+runID+"/submit_tool_outputs", body, &out); err != nil {
		return nil, err
	}
	return decodeRun(out), nil
}

func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var out runPayload
	if err := c.post(ctx, "/threads/"+threadID+"/runs/"+runID+"/cancel", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return decodeRun(out), nil
}

func (c *Client) CreateAssistant(ctx context.Context, spec Spec) (string, error) {
	body := map[string]any{
		"name":         spec.Name,
		"instructions": spec.Instructions,
		"model":        spec.Model,
	}
	if len(spec.Tools) > 0 {
		body["tools"] = spec.Tools
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/assistants", body, &out); err != nil {
		return "", err
	}
	logx.Info().Str("assistant_id", out.ID).Str("name", spec.Name).Msg("assistant provisioned")
	return out.ID, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(&apiErr).
		Post(path)
	return c.wrap(path, resp, err, &apiErr)
}

func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	var apiErr apiError
	req := c.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&apiErr)
	if query != nil {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	return c.wrap(path, resp, err, &apiErr)
}

// wrap classifies transport and HTTP failures into tagged errors so upper
// layers never have to match on message substrings.
func (c *Client) wrap(path string, resp *resty.Response, err error, apiErr *apiError) error {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return errx.NewKind(err, errx.KindTimeout, errx.TimeoutMessage)
		}
		return errx.NewKind(fmt.Errorf("request %s: %w", path, err), errx.KindGeneral, errx.ServiceUnavailableMessage)
	}
	if !resp.IsError() {
		return nil
	}

	remoteMsg := apiErr.Error.Message
	logx.Warn().
		Str("path", path).
		Int("status", resp.StatusCode()).
		Str("remote_error", remoteMsg).
		Msg("assistants api error")

	base := fmt.Errorf("assistants api %s: status %d: %s", path, resp.StatusCode(), remoteMsg)
	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return errx.NewKind(base, errx.KindRateLimit, errx.RateLimitMessage)
	case resp.StatusCode() == http.StatusBadRequest && strings.Contains(remoteMsg, "active run"):
		return errx.NewKind(fmt.Errorf("%w: %s", ErrActiveRun, remoteMsg), errx.KindGeneral, errx.SystemErrorMessage)
	case resp.StatusCode() >= http.StatusInternalServerError:
		return errx.NewKind(base, errx.KindTerminal, errx.ServiceUnavailableMessage)
	default:
		return errx.New(base, resp.StatusCode(), errx.SystemErrorMessage)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func decodeMessage(p messagePayload) *Message {
	text := ""
	for _, part := range p.Content {
		if part.Type == "text" {
			text += part.Text.Value
		}
	}
	return &Message{ID: p.ID, Role: p.Role, Text: text, CreatedAt: p.CreatedAt}
}

func decodeRun(p runPayload) *Run {
	run := &Run{
		ID:        p.ID,
		ThreadID:  p.ThreadID,
		Status:    RunStatus(p.Status),
		LastError: p.LastError,
	}
	if p.RequiredAction != nil {
		for _, tc := range p.RequiredAction.SubmitToolOutputs.ToolCalls {
			run.ToolCalls = append(run.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return run
}
