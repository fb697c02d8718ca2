// Package core implements the turn-processing state machine: emergency
// guard, prompt assembly, the bounded tool-dispatch loop, the disclaimer
// backstop, and the failure semantics around the model call.
package core

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"health-companion/internal/guard"
	"health-companion/internal/llm"
	"health-companion/internal/session"
	"health-companion/internal/tools"
	"health-companion/pkg"
)

// Options configures the orchestrator's safety floor.
type Options struct {
	// MaxToolRounds caps tool-dispatch rounds per turn. When the cap is
	// hit, the model is forced to answer with what it has.
	MaxToolRounds int
	// ToolTimeout bounds each individual tool invocation.
	ToolTimeout time.Duration
	// Disclaimers are the mandated sentences for condition-discussing
	// replies. Nil means DefaultDisclaimers.
	Disclaimers []string
}

// Orchestrator turns a user message plus session state into a reply. It is
// stateless itself; all per-conversation state lives in the session.
type Orchestrator struct {
	llm         llm.Client
	registry    *tools.Registry
	guard       *guard.Guard
	logger      *zap.Logger
	opts        Options
	disclaimers []string
	now         func() time.Time
}

// Reply is the outcome of one turn.
type Reply struct {
	Text       string
	ToolTraces []pkg.ToolTrace
}

// New constructs an orchestrator.
func New(client llm.Client, registry *tools.Registry, g *guard.Guard, opts Options, logger *zap.Logger) *Orchestrator {
	disclaimers := opts.Disclaimers
	if len(disclaimers) == 0 {
		disclaimers = DefaultDisclaimers
	}
	return &Orchestrator{
		llm:         client,
		registry:    registry,
		guard:       g,
		logger:      logger,
		opts:        opts,
		disclaimers: disclaimers,
		now:         time.Now,
	}
}

// HandleTurn processes one user message on a session and returns the reply.
// Turns on the same session are strictly serialized; the session lock is
// held for the whole pipeline. New history entries are buffered locally and
// committed only when the turn completes, so a cancelled turn never
// corrupts history ordering.
func (o *Orchestrator) HandleTurn(ctx context.Context, sess *session.Session, userText string) (*Reply, error) {
	sess.Lock()
	defer sess.Unlock()

	log := o.logger.With(zap.String("session_id", sess.ID))

	// A latched session rejects deterministically: same fixed reply, no
	// guard re-check, no model call, no tools.
	if sess.Latched() {
		log.Info("turn rejected: session emergency-latched")
		return &Reply{Text: guard.EmergencyResponse}, nil
	}

	userTurn := pkg.Turn{Role: pkg.RoleUser, Content: userText, CreatedAt: o.now()}

	if o.guard.Check(userText) {
		log.Warn("emergency language detected, latching session")
		sess.Append(userTurn, pkg.Turn{Role: pkg.RoleAssistant, Content: guard.EmergencyResponse, CreatedAt: o.now()})
		sess.Latch()
		return &Reply{Text: guard.EmergencyResponse}, nil
	}

	pending := []pkg.Turn{userTurn}
	messages := o.buildMessages(sess, userText)
	defs := o.registry.Definitions()

	var traces []pkg.ToolTrace
	var finalText string

	for round := 0; ; round++ {
		withinCap := round < o.opts.MaxToolRounds
		reqTools := defs
		if !withinCap {
			// Round cap hit: one last call, no tools offered, explicit
			// instruction to answer with what it has.
			log.Warn("tool round cap reached, forcing final answer", zap.Int("rounds", round))
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: roundCapInstruction,
			})
			reqTools = nil
		}

		msg, err := o.llm.Chat(ctx, messages, reqTools)
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled turn: discard buffered turns, history untouched.
				log.Info("turn cancelled", zap.Error(ctx.Err()))
				return nil, ctx.Err()
			}
			// Retries are exhausted inside the client. Generic apology,
			// full detail server-side only, session stays usable.
			log.Error("model unavailable after retries", zap.Error(err))
			pending = append(pending, pkg.Turn{Role: pkg.RoleAssistant, Content: ReplyModelUnavailable, CreatedAt: o.now()})
			sess.Append(pending...)
			return &Reply{Text: ReplyModelUnavailable, ToolTraces: traces}, nil
		}

		if len(msg.ToolCalls) == 0 || !withinCap {
			finalText = msg.Content
			break
		}

		messages = append(messages, msg)
		for _, tc := range msg.ToolCalls {
			content, trace, turn := o.dispatch(ctx, sess, tc, log)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Content:    content,
			})
			pending = append(pending, turn)
			traces = append(traces, trace)
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if strings.TrimSpace(finalText) == "" {
		finalText = ReplyEmptyCompletion
	}
	finalText = o.ensureDisclaimers(finalText)

	pending = append(pending, pkg.Turn{Role: pkg.RoleAssistant, Content: finalText, CreatedAt: o.now()})
	sess.Append(pending...)

	return &Reply{Text: finalText, ToolTraces: traces}, nil
}

// dispatch runs one requested tool call and maps its outcome to the content
// fed back to the model, a caller-facing trace, and a history turn. Tool
// failures are never fatal: the model is told and reasons around them.
func (o *Orchestrator) dispatch(ctx context.Context, sess *session.Session, tc openai.ToolCall, log *zap.Logger) (string, pkg.ToolTrace, pkg.Turn) {
	name := tc.Function.Name

	var content, summary string
	failed := false

	tool, ok := o.registry.Get(name)
	if !ok {
		e := &tools.Error{Kind: tools.KindNotFound, Message: "unknown tool: " + name}
		log.Warn("model requested unknown tool", zap.String("tool", name))
		content, summary, failed = e.ModelContent(), e.Message, true
	} else {
		toolCtx, cancel := context.WithTimeout(ctx, o.opts.ToolTimeout)
		res, terr := tool.Invoke(toolCtx, json.RawMessage(tc.Function.Arguments), sess.Reduced())
		cancel()
		if terr != nil {
			log.Warn("tool invocation failed",
				zap.String("tool", name),
				zap.String("kind", string(terr.Kind)),
				zap.String("message", terr.Message))
			content, summary, failed = terr.ModelContent(), terr.Message, true
		} else {
			log.Info("tool invocation succeeded", zap.String("tool", name))
			content, summary = res.ModelContent(), res.Summary
		}
	}

	trace := pkg.ToolTrace{Tool: name, Summary: summary, Failed: failed}
	turn := pkg.Turn{Role: pkg.RoleTool, ToolName: name, Content: content, CreatedAt: o.now()}
	return content, trace, turn
}

// buildMessages assembles the model request: system instructions with the
// cached reduced context attached, then the windowed history, then the new
// user message. Historical tool turns are recorded for traceability but not
// replayed; the provider API only accepts tool messages directly after the
// assistant message that requested them.
func (o *Orchestrator) buildMessages(sess *session.Session, userText string) []openai.ChatCompletionMessage {
	system := SystemPrompt
	if reduced := sess.Reduced(); reduced != nil {
		system += contextPreamble + reduced.PromptJSON() + contextCoda
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, t := range sess.History() {
		switch t.Role {
		case pkg.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Content})
		case pkg.RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: t.Content})
		}
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userText})
	return messages
}

// ensureDisclaimers appends whichever mandated sentences the model omitted
// from a reply that discusses a condition or diagnosis. This is a
// deterministic backstop on top of the prompt instructions, not a
// replacement for them.
func (o *Orchestrator) ensureDisclaimers(reply string) string {
	if !discussesCondition(reply) {
		return reply
	}
	var missing []string
	for _, d := range o.disclaimers {
		if !strings.Contains(reply, d) {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return reply
	}
	return reply + "\n\n" + strings.Join(missing, " ")
}

func discussesCondition(reply string) bool {
	lower := strings.ToLower(reply)
	for _, cue := range conditionCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}
