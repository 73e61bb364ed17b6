// Package turns derives chat structure from a flat ordered message list: it
// groups messages into turns (one user message plus the assistant response
// chain that follows it) and classifies each turn's parts into activity
// (tools, reasoning, interstitial narration) versus the final answer.
//
// Everything here is a pure derivation over the message slice; the Grouper
// adds a memoization layer so token streaming doesn't re-run the whole
// derivation on every update.
package turns

import (
	"strings"
	"unicode/utf8"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part types.
const (
	PartText      = "text"
	PartReasoning = "reasoning"
	PartTool      = "tool"
	PartStepStart = "step-start"
)

// FinishStop marks the assistant message that carries a turn's final answer.
const FinishStop = "stop"

// SubTaskTool is the tool name that acts as a segment boundary: activity
// after a sub-task invocation groups separately from what came before it.
const SubTaskTool = "task"

// MessageInfo identifies a message in the stream.
type MessageInfo struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Finish string `json:"finish,omitempty"`
}

// ToolState carries the progress of a tool-call part.
type ToolState struct {
	Status string `json:"status,omitempty"` // pending, running, completed, error
	Title  string `json:"title,omitempty"`
}

// Part is one content block of a message.
type Part struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	State     ToolState `json:"state,omitempty"`
	File      string    `json:"file,omitempty"`
	Additions int       `json:"additions,omitempty"`
	Deletions int       `json:"deletions,omitempty"`
}

// Message is one message with its ordered parts.
type Message struct {
	Info  MessageInfo `json:"info"`
	Parts []Part      `json:"parts"`
}

// Turn is one user message followed by all assistant messages until the
// next user message. Derived, never persisted.
type Turn struct {
	TurnID            string
	UserMessage       Message
	AssistantMessages []Message
}

// DetectTurns groups a flat message list into turns. Assistant messages
// before the first user message are ignored (they belong to no turn).
func DetectTurns(messages []Message) []Turn {
	var result []Turn
	for _, msg := range messages {
		switch msg.Info.Role {
		case RoleUser:
			result = append(result, Turn{TurnID: msg.Info.ID, UserMessage: msg})
		case RoleAssistant:
			if len(result) == 0 {
				continue
			}
			last := &result[len(result)-1]
			last.AssistantMessages = append(last.AssistantMessages, msg)
		}
	}
	return result
}

// StructureKey builds the key the static cache tier is invalidated on: it
// changes when the message sequence's shape changes (ids or roles), not
// when streamed content inside a message grows.
func StructureKey(messages []Message) string {
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(msg.Info.ID)
		b.WriteByte(':')
		b.WriteString(msg.Info.Role)
	}
	return b.String()
}

// LastUserMessage returns the id and text of the most recent user message,
// or ok=false when there is none. Used when pausing an in-flight turn.
func LastUserMessage(messages []Message) (id, text string, ok bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Info.Role != RoleUser {
			continue
		}
		var parts []string
		for _, part := range messages[i].Parts {
			if part.Type == PartText && part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
		return messages[i].Info.ID, strings.Join(parts, "\n"), true
	}
	return "", "", false
}

// ContextSummary synthesizes a short description of what was in flight:
// running/pending tool calls and the tail of any partial assistant text.
// Captured when a turn is paused so resume can explain where it left off.
func ContextSummary(messages []Message) string {
	var tools []string
	var partial string

	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Info.Role == RoleUser {
			break
		}
		for _, part := range msg.Parts {
			switch part.Type {
			case PartTool:
				if part.State.Status == "" || part.State.Status == "pending" || part.State.Status == "running" {
					name := part.Tool
					if part.State.Title != "" {
						name += " (" + part.State.Title + ")"
					}
					tools = append(tools, name)
				}
			case PartText:
				if partial == "" && msg.Info.Finish == "" {
					partial = part.Text
				}
			}
		}
	}

	var b strings.Builder
	if len(tools) > 0 {
		b.WriteString("In-flight tools: ")
		b.WriteString(strings.Join(tools, ", "))
	}
	if partial != "" {
		if b.Len() > 0 {
			b.WriteString(". ")
		}
		const tailLen = 200
		if len(partial) > tailLen {
			cut := len(partial) - tailLen
			for cut < len(partial) && !utf8.RuneStart(partial[cut]) {
				cut++
			}
			partial = "…" + partial[cut:]
		}
		b.WriteString("Partial response: ")
		b.WriteString(partial)
	}
	return b.String()
}
