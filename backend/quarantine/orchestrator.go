// Package quarantine runs the dual LLM protocol that turns an untrusted tool
// result into a summary. A privileged main agent asks multiple choice
// questions about the result without ever seeing it. An isolated agent that
// does see the result may only answer with a validated option index.
package quarantine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/furisto/toolgate/backend/model"
	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/invopop/jsonschema"
	"github.com/prometheus/client_golang/prometheus"
)

// Record is the persisted outcome of a completed session.
type Record struct {
	AgentID      string            `json:"agentId"`
	ToolCallID   string            `json:"toolCallId"`
	Conversation []TranscriptEntry `json:"conversation"`
	Result       string            `json:"result"`
	Outcome      string            `json:"outcome"`
}

type Store interface {
	SaveQuarantineRecord(ctx context.Context, record Record) error
}

// Progress is emitted after every answered question.
type Progress struct {
	AgentID    string   `json:"agentId"`
	ToolCallID string   `json:"toolCallId"`
	Round      int      `json:"round"`
	Question   string   `json:"question"`
	Options    []string `json:"options"`
	Answer     string   `json:"answer"`
}

type Observer interface {
	Observe(ctx context.Context, progress Progress)
}

// Completion is emitted once per finished session, successful or not.
type Completion struct {
	AgentID    string `json:"agentId"`
	ToolCallID string `json:"toolCallId"`
	Outcome    string `json:"outcome"`
	Rounds     int    `json:"rounds"`
	Err        error  `json:"-"`
}

// CompletionObserver is implemented by observers that also want to know
// when a session ends.
type CompletionObserver interface {
	Completed(ctx context.Context, completion Completion)
}

type ObserverFunc func(ctx context.Context, progress Progress)

func (f ObserverFunc) Observe(ctx context.Context, progress Progress) {
	f(ctx, progress)
}

type Request struct {
	AgentID     string
	ToolCallID  string
	UserRequest string
	Result      toolcall.ToolResult
	Config      Config
}

type Orchestrator struct {
	privileged  model.ChatClient
	quarantined model.ChatClient
	store       Store
	observer    Observer
	logger      *slog.Logger
	metrics     *metricsProvider
	schema      *jsonschema.Schema
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(registry *prometheus.Registry) Option {
	return func(o *Orchestrator) {
		o.metrics = newMetricsProvider(registry)
	}
}

func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// WithQuarantinedClient runs the isolated agent on a different client than
// the main agent.
func WithQuarantinedClient(client model.ChatClient) Option {
	return func(o *Orchestrator) {
		o.quarantined = client
	}
}

func NewOrchestrator(client model.ChatClient, store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		privileged:  client,
		quarantined: client,
		store:       store,
		logger:      slog.Default(),
		schema:      answerSchema(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run quarantines one tool result and returns the summary. Only errors from
// the chat client, the store or the context are returned; misbehaving
// agents end the session early instead.
func (o *Orchestrator) Run(ctx context.Context, req Request) (string, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	attrs := []any{"agent_id", req.AgentID, "tool_call_id", req.ToolCallID}
	data := NewUntrustedData(req.Result)
	o.logger.Debug("quarantine session started", append(attrs, "max_rounds", cfg.MaxRounds, "data_bytes", data.Len())...)

	session := newSession(PrivilegedPrompt(cfg.MainAgentPrompt, req.UserRequest), cfg.MaxRounds).asking()
	for !session.Terminated() {
		if err := ctx.Err(); err != nil {
			return "", o.failed(ctx, req, err, session, attrs)
		}

		reply, err := o.privileged.Chat(ctx, session.messages(), 0)
		if err != nil {
			return "", o.failed(ctx, req, fmt.Errorf("failed to query main agent: %w", err), session, attrs)
		}

		session = session.observeReply(reply)
		if session.Terminated() {
			break
		}

		if err := ctx.Err(); err != nil {
			return "", o.failed(ctx, req, err, session, attrs)
		}

		question := session.Pending
		index, err := o.answer(ctx, cfg, question, data, append(attrs, "round", session.Round))
		if err != nil {
			return "", o.failed(ctx, req, fmt.Errorf("failed to query quarantined agent: %w", err), session, attrs)
		}

		session = session.recordAnswer(index)
		if o.observer != nil {
			o.observer.Observe(ctx, Progress{
				AgentID:    req.AgentID,
				ToolCallID: req.ToolCallID,
				Round:      session.Round,
				Question:   question.Text,
				Options:    question.Options,
				Answer:     strconv.Itoa(index),
			})
		}
	}

	if err := ctx.Err(); err != nil {
		return "", o.failed(ctx, req, err, session, attrs)
	}

	session = session.summarizing()
	prompt := SummaryPrompt(cfg.SummaryPrompt, session.QAText())
	summary, err := o.privileged.Chat(ctx, []model.ChatMessage{model.UserMessage(prompt)}, 0)
	if err != nil {
		return "", o.failed(ctx, req, fmt.Errorf("failed to summarize quarantine session: %w", err), session, attrs)
	}
	session = session.completed(summary)

	record := Record{
		AgentID:      req.AgentID,
		ToolCallID:   req.ToolCallID,
		Conversation: session.Transcript,
		Result:       summary,
		Outcome:      session.Ending.String(),
	}
	if o.store != nil {
		if err := o.store.SaveQuarantineRecord(ctx, record); err != nil {
			return "", o.failed(ctx, req, fmt.Errorf("failed to save quarantine record: %w", err), session, attrs)
		}
	}

	o.metrics.RecordSession(session.Ending.String(), session.Round)
	o.logger.Info("quarantine session completed", append(attrs, "outcome", session.Ending.String(), "rounds", session.Round)...)
	o.complete(ctx, req, Completion{Outcome: session.Ending.String(), Rounds: session.Round})
	return summary, nil
}

func (o *Orchestrator) failed(ctx context.Context, req Request, err error, session Session, attrs []any) error {
	o.metrics.RecordSession(outcomeError, session.Round)
	o.logger.Error("quarantine session failed", append(attrs, "state", session.State.String(), "error", err)...)
	o.complete(ctx, req, Completion{Outcome: outcomeError, Rounds: session.Round, Err: err})
	return err
}

func (o *Orchestrator) complete(ctx context.Context, req Request, completion Completion) {
	observer, ok := o.observer.(CompletionObserver)
	if !ok {
		return
	}
	completion.AgentID = req.AgentID
	completion.ToolCallID = req.ToolCallID
	observer.Completed(context.WithoutCancel(ctx), completion)
}

const outcomeError = "error"
