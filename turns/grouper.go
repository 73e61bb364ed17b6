package turns

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// maxMessageContextCache bounds the per-message context memo.
const maxMessageContextCache = 500

// MessageContext is the derived per-message view the UI consumes: which
// turn a message belongs to, whether that turn is expanded, and the turn's
// activity info.
type MessageContext struct {
	TurnID     string
	TurnIndex  int
	IsLastTurn bool
	Expanded   bool
	Activity   TurnActivityInfo
}

// Grouper memoizes turn derivation across three tiers so token streaming
// doesn't recompute the whole conversation on every update:
//
//   - static tier: turns plus per-turn activity for all finished turns,
//     recomputed only when the structure key (message id:role sequence) or
//     the expand-by-default preference changes;
//   - UI-state tier: per-turn expand/collapse flags, independent of message
//     content, reset when the global preference changes;
//   - streaming tier: only the last turn's activity is recomputed on every
//     message change, by re-slicing the live message list instead of
//     re-running full turn detection.
type Grouper struct {
	mu              sync.Mutex
	expandByDefault bool

	// static tier
	structureKey   string
	turns          []Turn
	staticActivity map[int]TurnActivityInfo
	generation     int

	// UI-state tier
	expanded map[string]bool

	// streaming tier
	lastTurnSig      string
	lastTurnActivity TurnActivityInfo

	// per-message context memo, invalidated wholesale when the static tier
	// changes identity
	msgCtx      map[string]*MessageContext
	msgCtxOrder []string
}

// NewGrouper creates a Grouper with the given expand-by-default preference.
func NewGrouper(expandByDefault bool) *Grouper {
	return &Grouper{
		expandByDefault: expandByDefault,
		staticActivity:  make(map[int]TurnActivityInfo),
		expanded:        make(map[string]bool),
		msgCtx:          make(map[string]*MessageContext),
	}
}

// ensureStatic recomputes the static tier if the structure changed.
// Caller must hold mu.
func (g *Grouper) ensureStatic(messages []Message) {
	key := StructureKey(messages)
	if key == g.structureKey && g.turns != nil {
		return
	}
	g.structureKey = key
	g.turns = DetectTurns(messages)
	g.staticActivity = make(map[int]TurnActivityInfo)
	g.generation++
	g.lastTurnSig = ""
	g.msgCtx = make(map[string]*MessageContext)
	g.msgCtxOrder = g.msgCtxOrder[:0]
}

// Turns returns the turn list for messages, recomputing only when the
// message sequence's shape changed.
func (g *Grouper) Turns(messages []Message) []Turn {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureStatic(messages)
	return g.turns
}

// streamingSignature captures what can change inside the last turn while it
// streams: its message count and the size/state of the newest message.
func streamingSignature(messages []Message, lastTurnStart int) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(len(messages) - lastTurnStart))
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(len(last.Parts)))
		if n := len(last.Parts); n > 0 {
			p := last.Parts[n-1]
			fmt.Fprintf(&b, "|%d|%s", len(p.Text), p.State.Status)
		}
		b.WriteByte('|')
		b.WriteString(last.Info.Finish)
	}
	return b.String()
}

// lastTurnStartIndex finds the index of the last user message, which opens
// the last turn. Returns -1 when there is no user message.
func lastTurnStartIndex(messages []Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Info.Role == RoleUser {
			return i
		}
	}
	return -1
}

// ActivityInfo returns the activity info for the turn at turnIndex.
// Non-final turns come from the static tier; the last turn is re-derived
// from the live message slice whenever its streaming signature changes.
func (g *Grouper) ActivityInfo(messages []Message, turnIndex int) TurnActivityInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activityInfoLocked(messages, turnIndex)
}

func (g *Grouper) activityInfoLocked(messages []Message, turnIndex int) TurnActivityInfo {
	g.ensureStatic(messages)
	if turnIndex < 0 || turnIndex >= len(g.turns) {
		return TurnActivityInfo{}
	}

	if turnIndex == len(g.turns)-1 {
		start := lastTurnStartIndex(messages)
		sig := streamingSignature(messages, start)
		if sig != g.lastTurnSig {
			// Re-slice the live messages: the static tier's copy of the last
			// turn may predate the newest streamed content.
			live := Turn{TurnID: messages[start].Info.ID, UserMessage: messages[start]}
			live.AssistantMessages = append(live.AssistantMessages, messages[start+1:]...)
			g.lastTurnActivity = GetTurnActivityInfo(live)
			g.lastTurnSig = sig
		}
		return g.lastTurnActivity
	}

	if cached, ok := g.staticActivity[turnIndex]; ok {
		return cached
	}
	info := GetTurnActivityInfo(g.turns[turnIndex])
	g.staticActivity[turnIndex] = info
	return info
}

// SetExpandByDefault changes the global expand preference. This resets the
// per-turn UI-state tier and invalidates the static tier.
func (g *Grouper) SetExpandByDefault(expand bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expandByDefault == expand {
		return
	}
	g.expandByDefault = expand
	g.expanded = make(map[string]bool)
	g.structureKey = ""
	g.turns = nil
}

// SetExpanded overrides the expand state for one turn.
func (g *Grouper) SetExpanded(turnID string, expanded bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expanded[turnID] = expanded
	// Expansion is part of the message-context cache key, so stale entries
	// are simply never hit again; no invalidation needed.
}

// Expanded reports whether a turn is expanded, falling back to the global
// preference when the user hasn't toggled it.
func (g *Grouper) Expanded(turnID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expandedLocked(turnID)
}

func (g *Grouper) expandedLocked(turnID string) bool {
	if v, ok := g.expanded[turnID]; ok {
		return v
	}
	return g.expandByDefault
}

// MessageContext returns the memoized per-message context. The cache key is
// (messageID, expanded state, streaming signature for the last turn); the
// whole cache is dropped whenever the static tier changes identity, and a
// least-recently-used eviction keeps it under maxMessageContextCache
// entries.
func (g *Grouper) MessageContext(messages []Message, messageID string) *MessageContext {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ensureStatic(messages)

	turnIndex := -1
	for i, turn := range g.turns {
		if turn.UserMessage.Info.ID == messageID {
			turnIndex = i
			break
		}
		for _, msg := range turn.AssistantMessages {
			if msg.Info.ID == messageID {
				turnIndex = i
				break
			}
		}
		if turnIndex >= 0 {
			break
		}
	}
	if turnIndex < 0 {
		return nil
	}

	turn := g.turns[turnIndex]
	isLast := turnIndex == len(g.turns)-1
	expanded := g.expandedLocked(turn.TurnID)

	key := messageID + "|" + strconv.FormatBool(expanded)
	if isLast {
		key += "|" + streamingSignature(messages, lastTurnStartIndex(messages))
	}

	if ctx, ok := g.msgCtx[key]; ok {
		g.touchKey(key)
		return ctx
	}

	ctx := &MessageContext{
		TurnID:     turn.TurnID,
		TurnIndex:  turnIndex,
		IsLastTurn: isLast,
		Expanded:   expanded,
		Activity:   g.activityInfoLocked(messages, turnIndex),
	}

	if len(g.msgCtxOrder) >= maxMessageContextCache {
		oldest := g.msgCtxOrder[0]
		g.msgCtxOrder = g.msgCtxOrder[1:]
		delete(g.msgCtx, oldest)
	}
	g.msgCtx[key] = ctx
	g.msgCtxOrder = append(g.msgCtxOrder, key)
	return ctx
}

// touchKey moves a hit to the back of the eviction order so frequently
// read contexts outlive cold ones. Caller must hold mu.
func (g *Grouper) touchKey(key string) {
	for i, k := range g.msgCtxOrder {
		if k == key {
			g.msgCtxOrder = append(g.msgCtxOrder[:i], g.msgCtxOrder[i+1:]...)
			g.msgCtxOrder = append(g.msgCtxOrder, key)
			return
		}
	}
}

// Generation exposes the static tier's identity (for tests and debugging).
func (g *Grouper) Generation() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}
