package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hearthd/hearth/internal/directive"
	"github.com/hearthd/hearth/internal/events"
	"github.com/hearthd/hearth/internal/home"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/memory"
	"github.com/hearthd/hearth/internal/prompts"
)

// fallbackReply is returned when the model cannot be reached during a
// conversation. The failure is logged; the user just gets a neutral
// acknowledgment.
const fallbackReply = "I understand. Let me know if you need anything."

// Deps are the manager's collaborators. Bus may be nil.
type Deps struct {
	Store      *memory.ContextStore
	Prompts    *prompts.Builder
	Model      llm.Client
	Parser     *directive.Parser
	Dispatcher *directive.Dispatcher
	Gate       *Gate
	Bus        *events.Bus
	Logger     *slog.Logger
	ModelName  string
}

// Manager orchestrates conversation turns and proactive analysis.
type Manager struct {
	store      *memory.ContextStore
	prompts    *prompts.Builder
	model      llm.Client
	parser     *directive.Parser
	dispatcher *directive.Dispatcher
	gate       *Gate
	bus        *events.Bus
	logger     *slog.Logger
	modelName  string

	// analyzeMu serializes snapshot analysis so the gate check and the
	// eventual fire are atomic with respect to concurrent analyses.
	analyzeMu sync.Mutex

	suggestionsFired atomic.Int64
	actionsExecuted  atomic.Int64

	lastMu         sync.Mutex
	lastSuggestion *Suggestion

	// now is swapped in tests.
	now func() time.Time
}

// NewManager wires up a manager.
func NewManager(d Deps) *Manager {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:      d.Store,
		prompts:    d.Prompts,
		model:      d.Model,
		parser:     d.Parser,
		dispatcher: d.Dispatcher,
		gate:       d.Gate,
		bus:        d.Bus,
		logger:     logger.With("component", "agent"),
		modelName:  d.ModelName,
		now:        time.Now,
	}
}

// HandleUserMessage runs one conversation turn: store the user
// message, ask the model with recent history, apply any directives in
// the reply, store the cleaned reply, and return it. Model failures
// degrade to a fallback acknowledgment; only persistence failures are
// returned as errors.
func (m *Manager) HandleUserMessage(ctx context.Context, text string) (*Response, error) {
	m.bus.Emit(events.SourceAgent, events.KindInteraction, map[string]any{"message_len": len(text)})

	if err := m.store.Append(memory.NewMessage(memory.RoleUser, text, nil)); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}

	req := llm.Request{
		System:  m.prompts.System(),
		History: m.prompts.History(m.store.Recent(m.store.Len())),
		User:    m.prompts.InteractionUser(text),
	}

	raw, err := m.complete(ctx, req, false)

	var display string
	var results []directive.ActionResult
	if err != nil {
		m.logger.Warn("conversation model call failed, using fallback", "err", err)
		display = fallbackReply
		results = []directive.ActionResult{}
	} else {
		var directives map[string]directive.Directive
		display, directives = m.parser.Parse(raw)
		results = m.apply(ctx, directives)
		if display == "" && len(directives) > 0 {
			display = "Done."
		}
	}

	agentMsg := memory.NewMessage(memory.RoleAgent, display, map[string]any{
		"actions_taken": results,
	})
	if err := m.store.Append(agentMsg); err != nil {
		return nil, fmt.Errorf("store agent message: %w", err)
	}

	return &Response{
		Message:      display,
		ActionsTaken: results,
		Timestamp:    m.now(),
	}, nil
}

// AnalyzeSnapshot runs one proactive pass over a home snapshot. It
// returns nil without side effects when the gate is closed, and nil
// when the model fails (the cooldown is left untouched so the next
// tick can try again). A produced suggestion fires the gate, applies
// its directives, and is appended to the conversation; if the append
// fails the suggestion is still returned alongside the error.
func (m *Manager) AnalyzeSnapshot(ctx context.Context, snap home.Snapshot) (*Suggestion, error) {
	m.analyzeMu.Lock()
	defer m.analyzeMu.Unlock()

	m.store.SetState(map[string]any{
		"room_occupancy": snap.Occupancy,
		"device_count":   len(snap.Devices),
		"timestamp":      snap.Timestamp,
	})

	if !m.gate.Allow(m.now()) {
		m.logger.Debug("suggestion gate closed, skipping analysis")
		return nil, nil
	}

	desc := DescribeSnapshot(snap)
	m.logger.Debug("analyzing home state", "state", desc)

	req := llm.Request{
		System: m.prompts.System(),
		User:   m.prompts.AnalysisUser(desc),
	}

	raw, err := m.complete(ctx, req, true)
	if err != nil {
		m.logger.Warn("proactive model call failed, no suggestion", "err", err)
		return nil, nil
	}

	content, directives := m.parser.Parse(raw)
	results := m.apply(ctx, directives)

	id, _ := uuid.NewV7()
	suggestion := &Suggestion{
		ID:        id.String(),
		Content:   content,
		Actions:   directives,
		Results:   results,
		Reasoning: fmt.Sprintf("state analysis by %s", m.modelName),
		Timestamp: m.now(),
	}

	m.gate.Fire(m.now())
	m.suggestionsFired.Add(1)
	m.setLastSuggestion(suggestion)
	m.bus.Emit(events.SourceAgent, events.KindSuggestion, map[string]any{
		"suggestion_id": suggestion.ID,
		"directives":    len(directives),
	})

	msg := memory.NewMessage(memory.RoleAgent, content, map[string]any{
		"suggestion_id":     suggestion.ID,
		"reasoning":         suggestion.Reasoning,
		"suggested_actions": directives,
	})
	if err := m.store.Append(msg); err != nil {
		return suggestion, fmt.Errorf("store suggestion: %w", err)
	}

	return suggestion, nil
}

// complete calls the model and publishes the call lifecycle on the bus.
func (m *Manager) complete(ctx context.Context, req llm.Request, proactive bool) (string, error) {
	m.bus.Emit(events.SourceAgent, events.KindLLMCall, map[string]any{
		"model":     m.modelName,
		"proactive": proactive,
	})

	start := m.now()
	raw, err := m.model.Complete(ctx, req)

	m.bus.Emit(events.SourceAgent, events.KindLLMResponse, map[string]any{
		"model":       m.modelName,
		"ok":          err == nil,
		"duration_ms": m.now().Sub(start).Milliseconds(),
	})
	return raw, err
}

// apply dispatches directives and publishes per-device outcomes.
func (m *Manager) apply(ctx context.Context, directives map[string]directive.Directive) []directive.ActionResult {
	results := m.dispatcher.Apply(ctx, directives)
	for _, r := range results {
		if r.Success {
			m.actionsExecuted.Add(1)
		}
		m.bus.Emit(events.SourceDispatcher, events.KindActionApplied, map[string]any{
			"device_id": r.DeviceID,
			"success":   r.Success,
			"message":   r.Message,
		})
	}
	return results
}

func (m *Manager) setLastSuggestion(s *Suggestion) {
	m.lastMu.Lock()
	defer m.lastMu.Unlock()
	m.lastSuggestion = s
}

// LastSuggestion returns the most recent suggestion, nil if none yet.
func (m *Manager) LastSuggestion() *Suggestion {
	m.lastMu.Lock()
	defer m.lastMu.Unlock()
	return m.lastSuggestion
}

// Status reports the agent's operational state.
func (m *Manager) Status() Status {
	return Status{
		Active:           true,
		Model:            m.modelName,
		ContextLength:    m.store.Len(),
		LastInteraction:  m.store.LastInteraction(),
		LastSuggestion:   m.gate.LastFired(),
		SuggestionsFired: m.suggestionsFired.Load(),
		ActionsExecuted:  m.actionsExecuted.Load(),
	}
}
