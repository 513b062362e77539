package constant

// System prompts of the LLM-backed stage collaborators
const (
	IntentSystemPrompt    = "You classify what the player is trying to do. You never narrate."
	EnrichSystemPrompt    = "You list the rules and background facts relevant to the player's next action."
	ActionSystemPrompt    = "You adjudicate the outcome of actions. Be fair and terse."
	ReactionSystemPrompt  = "You decide which non-player characters react to what just happened."
	LocationSystemPrompt  = "You decide whether the story moves to another location this turn."
	NarrativeSystemPrompt = `You are the narrator of an interactive story. Write the next passage in second person.
Honor the directives: never contradict an action outcome, mention a rejected move only as the reason the scene stays put,
and when just_transitioned is true open with the arrival at the new location.`
)

// Output schemas appended to every structured request
const (
	IntentOutputSchema    = `{"action_type": "move|search|talk|attack|use|other", "target": "", "summary": "", "requires_check": false, "confidence": 0.0}`
	EnrichOutputSchema    = `{"rules": [""], "references": [""], "notes": ""}`
	ActionOutputSchema    = `{"outcomes": [{"participant_id": "", "action": "", "result": "", "success": true, "time_cost": "instant|short|scene"}]}`
	ReactionOutputSchema  = `{"reactions": [{"participant_id": "", "should_respond": false, "reaction": "", "urgency": 0}]}`
	LocationOutputSchema  = `{"should_transition": false, "target_location": {"id": "", "name": "", "description": ""}, "reasoning": ""}`
	NarrativeOutputSchema = `{"narrative_text": "", "revealed_facts": [""]}`
)
