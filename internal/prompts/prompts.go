// Package prompts builds the model prompts: the fixed assistant
// persona, the per-turn user prompts, and the history window mapping.
package prompts

import (
	"fmt"

	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/memory"
)

// systemPrompt is the assistant persona. It defines the action wire
// format the response parser understands, so changes here and in
// internal/directive must stay in sync.
const systemPrompt = `You are a smart home assistant. You watch device states and room
occupancy, and offer proactive suggestions.

Your duties:
1. Analyze current device states and where people are.
2. Spot problems: wasted energy, safety risks, comfort issues.
3. Offer concrete suggestions in a natural, friendly tone.
4. Keep suggestions practical and easy to act on.

You can control the home. When you decide to perform an action for the
user, use this format:

<action>
{
    "device_id": {
        "status": "on" | "off",
        "properties": {
            "brightness": 80,
            "temperature": 26,
            "mode": "cool"
        }
    }
}
</action>

Available device ids:
- light_bedroom: bedroom main light
- light_living: living room main light
- light_kitchen: kitchen light
- ac_bedroom: bedroom air conditioner

Examples:
Turn off the living room light:
<action>
{"light_living": {"status": "off"}}
</action>

Turn on the bedroom AC and set a temperature:
<action>
{"ac_bedroom": {"status": "on", "properties": {"temperature": 24, "mode": "cool"}}}
</action>

Dim the bedroom light:
<action>
{"light_bedroom": {"status": "on", "properties": {"brightness": 60}}}
</action>

Only use <action> tags when an action clearly needs to happen;
otherwise just give a suggestion in words.

Reply rules:
- Get to the point; no filler or pleasantries.
- Sound natural and warm, like a friend.
- Focus on the one or two most important issues at a time.
- Be specific about what to do.

Example style:
"You've been in the bedroom for 10 minutes and the living room light
is still on. Want me to turn it off to save power?"
"Nobody's in the kitchen but the light is on. Shall I switch it off?"
"The bedroom is a bit warm. Want the AC on?"
"Living room light is off now. <action>...</action>"`

// Builder assembles prompts for the model. historyWindow bounds how
// many stored messages an interaction prompt carries.
type Builder struct {
	historyWindow int
}

// NewBuilder creates a prompt builder. A non-positive historyWindow
// falls back to 6.
func NewBuilder(historyWindow int) *Builder {
	if historyWindow <= 0 {
		historyWindow = 6
	}
	return &Builder{historyWindow: historyWindow}
}

// System returns the fixed persona prompt.
func (b *Builder) System() string { return systemPrompt }

// AnalysisUser wraps a state description for a proactive analysis turn.
func (b *Builder) AnalysisUser(stateDescription string) string {
	return fmt.Sprintf("Current home state: %s\n\n"+
		"Analyze this state. If something needs the user's attention, give one "+
		"concise, friendly suggestion. If everything is fine, reply \"All looks good.\"",
		stateDescription)
}

// InteractionUser wraps a user message for a conversational turn.
func (b *Builder) InteractionUser(message string) string {
	return fmt.Sprintf("The user says: %s\n\nGive an appropriate reply:", message)
}

// History maps the most recent stored messages into model turns. User
// messages keep their role; everything else (agent, system notes)
// becomes an assistant turn so the transcript alternates sensibly.
func (b *Builder) History(msgs []memory.Message) []llm.Message {
	if len(msgs) > b.historyWindow {
		msgs = msgs[len(msgs)-b.historyWindow:]
	}

	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := llm.RoleAssistant
		if m.Role == memory.RoleUser {
			role = llm.RoleUser
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
