package state

import (
	"strings"

	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/store"
)

const module = "STATE"

// Manager is the only mutation surface over one SessionState.
// Every method is total: bad input is clamped or ignored, never rejected.
type Manager struct {
	session *store.SessionState
	logger  logger.ILogger
}

// NewManager wraps a session state; nil maps are initialized
func NewManager(session *store.SessionState, logger logger.ILogger) *Manager {
	if session.LocationActionCounts == nil {
		session.LocationActionCounts = make(map[string]int)
	}
	if session.Participants == nil {
		session.Participants = make(map[string]*store.Participant)
	}
	if session.Temp.Scratch == nil {
		session.Temp.Scratch = make(map[string]any)
	}
	if session.ActionCap <= 0 {
		session.ActionCap = store.DefaultActionCap
	}
	return &Manager{session: session, logger: logger}
}

// Session exposes the underlying state for read access
func (m *Manager) Session() *store.SessionState {
	return m.session
}

// AddActionOutcome appends an outcome, keeps the last MaxActionOutcomes
// and charges the actor's short-action counter by the outcome's time cost.
func (m *Manager) AddActionOutcome(outcome store.ActionOutcome) {
	if outcome.ParticipantID == "" {
		outcome.ParticipantID = m.session.Protagonist.ID
	}
	if outcome.TimeCost == "" {
		outcome.TimeCost = store.TimeCostShort
	}

	outcomes := append(m.session.Temp.ActionOutcomes, outcome)
	if overflow := len(outcomes) - store.MaxActionOutcomes; overflow > 0 {
		trimmed := make([]store.ActionOutcome, store.MaxActionOutcomes)
		copy(trimmed, outcomes[overflow:])
		outcomes = trimmed
	}
	m.session.Temp.ActionOutcomes = outcomes

	counts := m.session.LocationActionCounts
	current := clamp(counts[outcome.ParticipantID])
	switch outcome.TimeCost {
	case store.TimeCostInstant:
		counts[outcome.ParticipantID] = current
	case store.TimeCostScene:
		if current < m.session.ActionCap {
			current = m.session.ActionCap
		}
		counts[outcome.ParticipantID] = current
	default:
		counts[outcome.ParticipantID] = current + 1
	}
}

// GetAllActionOutcomes returns a copy of the outcome buffer in add order
func (m *Manager) GetAllActionOutcomes() []store.ActionOutcome {
	out := make([]store.ActionOutcome, len(m.session.Temp.ActionOutcomes))
	copy(out, m.session.Temp.ActionOutcomes)
	return out
}

// ActionCount is the short-action counter of a participant at the current location
func (m *Manager) ActionCount(participantID string) int {
	return clamp(m.session.LocationActionCounts[participantID])
}

// RemainingShortActions is how many short actions are left before the cap
func (m *Manager) RemainingShortActions(participantID string) int {
	return clamp(m.session.ActionCap - m.ActionCount(participantID))
}

func (m *Manager) SetIntentAnalysis(analysis *store.IntentAnalysis) {
	m.session.Temp.IntentAnalysis = analysis
}

func (m *Manager) ClearIntentAnalysis() {
	m.session.Temp.IntentAnalysis = nil
}

func (m *Manager) IntentAnalysis() *store.IntentAnalysis {
	return m.session.Temp.IntentAnalysis
}

func (m *Manager) SetLocationTransitionRequest(request *store.LocationTransitionRequest) {
	m.session.Temp.PendingTransition = request
}

func (m *Manager) ClearLocationTransitionRequest() {
	m.session.Temp.PendingTransition = nil
}

func (m *Manager) LocationTransitionRequest() *store.LocationTransitionRequest {
	return m.session.Temp.PendingTransition
}

// CommitLocationTransition makes newLocation current. The previous location
// is pushed to the front of the visited history (deduplicated, max 3) and
// every per-location counter starts over.
func (m *Manager) CommitLocationTransition(newLocation store.Location) {
	previous := m.session.CurrentLocation
	if previous != nil {
		history := make([]store.Location, 0, store.MaxVisitedLocations)
		history = append(history, *previous)
		for _, loc := range m.session.VisitedLocations {
			if len(history) == store.MaxVisitedLocations {
				break
			}
			id := loc.Identity()
			if id == previous.Identity() || id == newLocation.Identity() {
				continue
			}
			history = append(history, loc)
		}
		m.session.VisitedLocations = history
	}

	m.session.LocationActionCounts = make(map[string]int)
	loc := newLocation
	m.session.CurrentLocation = &loc
	m.session.Protagonist.LocationID = loc.ID
	m.session.Temp.JustTransitioned = true

	details := map[string]interface{}{"session_id": m.session.SessionID, "to": loc.Name}
	if previous != nil {
		details["from"] = previous.Name
	}
	m.logger.Debug(module, "Location transition committed", details)
}

// RejectTransition records a one-shot note explaining a refused move
func (m *Manager) RejectTransition(note string) {
	m.session.Temp.TransitionRejection = strings.TrimSpace(note)
	m.session.Temp.PendingTransition = nil
}

func (m *Manager) TransitionRejection() string {
	return m.session.Temp.TransitionRejection
}

// ConsumeJustTransitioned reads and resets the one-shot transition flag
func (m *Manager) ConsumeJustTransitioned() bool {
	v := m.session.Temp.JustTransitioned
	m.session.Temp.JustTransitioned = false
	return v
}

// ClearEphemeralTurnState resets turn-owned working data. Only external
// turns call it; simulated follow-ups keep the previous turn's data.
func (m *Manager) ClearEphemeralTurnState() {
	m.session.Temp.ActionOutcomes = nil
	m.session.Temp.IntentAnalysis = nil
	m.session.Temp.TransitionRejection = ""
	m.session.Temp.ReactionDecisions = nil
	m.session.Temp.Scratch = make(map[string]any)
}

func (m *Manager) SetReactionDecisions(decisions []store.ReactionDecision) {
	m.session.Temp.ReactionDecisions = decisions
}

// RespondingParticipants returns the decisions flagged to respond
func (m *Manager) RespondingParticipants() []store.ReactionDecision {
	var out []store.ReactionDecision
	for _, d := range m.session.Temp.ReactionDecisions {
		if d.ShouldRespond {
			out = append(out, d)
		}
	}
	return out
}

// MergeScratch copies enrichment data into the scratch area, overwriting keys
func (m *Manager) MergeScratch(data map[string]any) {
	for k, v := range data {
		m.session.Temp.Scratch[k] = v
	}
}

func (m *Manager) Scratch() map[string]any {
	return m.session.Temp.Scratch
}

// AppendDiscoveredFact adds a fact unless the exact content is already known.
// Returns true when the fact was new.
func (m *Manager) AppendDiscoveredFact(fact string) bool {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return false
	}
	for _, known := range m.session.DiscoveredFacts {
		if known == fact {
			return false
		}
	}
	m.session.DiscoveredFacts = append(m.session.DiscoveredFacts, fact)
	return true
}

// AdjustTension moves the pacing scalar, clamped to [0, 1]
func (m *Manager) AdjustTension(delta float64) {
	t := m.session.Tension + delta
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	m.session.Tension = t
}

func (m *Manager) SetPhase(phase store.NarrativePhase) {
	m.session.Phase = phase
}

// RestoreLocalHistory brings back what a checkpoint remembers about the
// current location: its stored description and the participants left there.
func (m *Manager) RestoreLocalHistory(snapshot *store.SessionState) {
	current := m.session.CurrentLocation
	if snapshot == nil || current == nil || snapshot.CurrentLocation == nil {
		return
	}
	if snapshot.CurrentLocation.Identity() == current.Identity() && snapshot.CurrentLocation.Description != "" && current.Description == "" {
		current.Description = snapshot.CurrentLocation.Description
	}

	restored := 0
	for id, p := range snapshot.Participants {
		if p == nil || id == m.session.Protagonist.ID {
			continue
		}
		if p.LocationID != "" && p.LocationID != current.ID {
			continue
		}
		cp := *p
		m.session.Participants[id] = &cp
		restored++
	}
	m.logger.Debug(module, "Local history restored", map[string]interface{}{
		"session_id":   m.session.SessionID,
		"location":     current.Name,
		"participants": restored,
	})
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
