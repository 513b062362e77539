package store

import (
	"encoding/json"
	"fmt"
)

// Buffer limits for the bounded parts of the session state
const (
	MaxActionOutcomes   = 10
	MaxVisitedLocations = 3
	DefaultActionCap    = 3
)

// TimeCost classifies how much narrative time an action consumes
type TimeCost string

const (
	TimeCostInstant TimeCost = "instant"
	TimeCostShort   TimeCost = "short"
	TimeCostScene   TimeCost = "scene"
)

// NarrativePhase is the coarse pacing phase of the story
type NarrativePhase string

const (
	PhaseExploration NarrativePhase = "exploration"
	PhaseRising      NarrativePhase = "rising"
	PhaseClimax      NarrativePhase = "climax"
	PhaseResolution  NarrativePhase = "resolution"
)

// Location is a narrative place the protagonist can stand in
type Location struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Exits       []string `json:"exits,omitempty"`
}

// Identity returns the key used for deduplication (id, falling back to name)
func (l Location) Identity() string {
	if l.ID != "" {
		return l.ID
	}
	return l.Name
}

// Relationship is what one participant feels toward another
type Relationship struct {
	Disposition int    `json:"disposition"`
	Notes       string `json:"notes,omitempty"`
}

// Participant is the protagonist or any non-protagonist character
type Participant struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	HP            int                     `json:"hp"`
	Sanity        int                     `json:"sanity"`
	Status        string                  `json:"status,omitempty"`
	LocationID    string                  `json:"location_id,omitempty"`
	Attributes    map[string]int          `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
	Knowledge     []string                `json:"knowledge,omitempty"`
}

// ActionOutcome is the resolved result of one participant action
type ActionOutcome struct {
	ParticipantID   string   `json:"participant_id"`
	ParticipantName string   `json:"participant_name,omitempty"`
	Action          string   `json:"action"`
	Result          string   `json:"result"`
	Success         bool     `json:"success"`
	TimeCost        TimeCost `json:"time_cost"`
}

// IntentAnalysis is the structured reading of a raw input
type IntentAnalysis struct {
	ActorID       string  `json:"actor_id,omitempty"`
	ActionType    string  `json:"action_type"`
	Target        string  `json:"target,omitempty"`
	Summary       string  `json:"summary"`
	RequiresCheck bool    `json:"requires_check"`
	Confidence    float64 `json:"confidence"`
}

// LocationTransitionRequest is a pending request to move elsewhere
type LocationTransitionRequest struct {
	Target      Location `json:"target"`
	Reasoning   string   `json:"reasoning,omitempty"`
	RequestedBy string   `json:"requested_by,omitempty"`
}

// ReactionDecision says whether a participant answers the current beat
type ReactionDecision struct {
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name,omitempty"`
	ShouldRespond   bool   `json:"should_respond"`
	Reaction        string `json:"reaction,omitempty"`
	Urgency         int    `json:"urgency,omitempty"`
}

// LocationDecision is the verdict of the location collaborator
type LocationDecision struct {
	ShouldTransition bool      `json:"should_transition"`
	TargetLocation   *Location `json:"target_location,omitempty"`
	Reasoning        string    `json:"reasoning"`
}

// TemporaryInfo holds the ephemeral, turn-scoped working data
type TemporaryInfo struct {
	ActionOutcomes      []ActionOutcome            `json:"action_outcomes"`
	IntentAnalysis      *IntentAnalysis            `json:"intent_analysis,omitempty"`
	PendingTransition   *LocationTransitionRequest `json:"pending_transition,omitempty"`
	JustTransitioned    bool                       `json:"just_transitioned"`
	TransitionRejection string                     `json:"transition_rejection,omitempty"`
	ReactionDecisions   []ReactionDecision         `json:"reaction_decisions,omitempty"`
	Scratch             map[string]any             `json:"scratch,omitempty"`
}

// SessionState is the canonical mutable record of one narrative session.
// Mutate it only through state.Manager.
type SessionState struct {
	SessionID string `json:"session_id"`

	CurrentLocation      *Location      `json:"current_location,omitempty"`
	VisitedLocations     []Location     `json:"visited_locations"`
	LocationActionCounts map[string]int `json:"location_action_counts"`
	ActionCap            int            `json:"action_cap"`

	Protagonist  Participant             `json:"protagonist"`
	Participants map[string]*Participant `json:"participants"`

	DiscoveredFacts []string       `json:"discovered_facts"`
	Tension         float64        `json:"tension"`
	Phase           NarrativePhase `json:"phase"`

	GameDay  int    `json:"game_day"`
	GameTime string `json:"game_time"`

	Temp TemporaryInfo `json:"temp"`
}

// NewSessionState builds an empty state positioned at start (may be nil)
func NewSessionState(sessionID string, protagonist Participant, start *Location) *SessionState {
	s := &SessionState{
		SessionID:            sessionID,
		LocationActionCounts: make(map[string]int),
		ActionCap:            DefaultActionCap,
		Protagonist:          protagonist,
		Participants:         make(map[string]*Participant),
		Phase:                PhaseExploration,
		GameDay:              1,
		GameTime:             "08:00",
		Temp:                 TemporaryInfo{Scratch: make(map[string]any)},
	}
	if start != nil {
		loc := *start
		s.CurrentLocation = &loc
	}
	return s
}

// Participant looks up a participant by id, including the protagonist
func (s *SessionState) Participant(id string) (*Participant, bool) {
	if id == s.Protagonist.ID {
		return &s.Protagonist, true
	}
	p, ok := s.Participants[id]
	return p, ok
}

// Clone returns a deep copy, used for collaborator snapshots and checkpoints
func (s *SessionState) Clone() (*SessionState, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session state: %w", err)
	}
	return Decode(raw)
}

// Decode restores a serialized state and repairs nil maps
func Decode(raw []byte) (*SessionState, error) {
	var s SessionState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	if s.LocationActionCounts == nil {
		s.LocationActionCounts = make(map[string]int)
	}
	if s.Participants == nil {
		s.Participants = make(map[string]*Participant)
	}
	if s.Temp.Scratch == nil {
		s.Temp.Scratch = make(map[string]any)
	}
	if s.ActionCap <= 0 {
		s.ActionCap = DefaultActionCap
	}
	return &s, nil
}
