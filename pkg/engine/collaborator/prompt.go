package collaborator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"narrative-engine-be/pkg/store"
)

type promptBuilder struct {
	b strings.Builder
}

func newPrompt(system string) *promptBuilder {
	p := &promptBuilder{}
	p.b.WriteString("<system>\n")
	p.b.WriteString(system)
	p.b.WriteString("\n</system>\n\n")
	return p
}

func (p *promptBuilder) section(tag, body string) *promptBuilder {
	if strings.TrimSpace(body) == "" || body == "null" {
		return p
	}
	fmt.Fprintf(&p.b, "<%s>\n%s\n</%s>\n\n", tag, body, tag)
	return p
}

func (p *promptBuilder) output(schema string) *promptBuilder {
	p.b.WriteString("<output_format>\nRespond with ONLY valid JSON:\n")
	p.b.WriteString(schema)
	p.b.WriteString("\n</output_format>")
	return p
}

func (p *promptBuilder) String() string {
	return p.b.String()
}

func describeScene(s *store.SessionState) string {
	var b strings.Builder
	if s.CurrentLocation != nil {
		fmt.Fprintf(&b, "LOCATION: %s (%s)\n", s.CurrentLocation.Name, s.CurrentLocation.ID)
		if s.CurrentLocation.Description != "" {
			fmt.Fprintf(&b, "DESCRIPTION: %s\n", s.CurrentLocation.Description)
		}
		if len(s.CurrentLocation.Exits) > 0 {
			fmt.Fprintf(&b, "EXITS: %s\n", strings.Join(s.CurrentLocation.Exits, ", "))
		}
	} else {
		b.WriteString("LOCATION: unknown\n")
	}
	fmt.Fprintf(&b, "DAY %d, %s | PHASE: %s | TENSION: %.2f\n", s.GameDay, s.GameTime, s.Phase, s.Tension)
	fmt.Fprintf(&b, "PROTAGONIST: %s (HP %d, SANITY %d)", s.Protagonist.Name, s.Protagonist.HP, s.Protagonist.Sanity)
	return b.String()
}

func describeParticipants(s *store.SessionState) string {
	ids := make([]string, 0, len(s.Participants))
	for id := range s.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		p := s.Participants[id]
		fmt.Fprintf(&b, "- %s [%s] status=%q hp=%d\n", p.Name, p.ID, p.Status, p.HP)
	}
	return b.String()
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
