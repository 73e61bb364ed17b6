package turns

// ActivityKind classifies a part within a turn's activity.
type ActivityKind string

const (
	// ActivityTool is a tool invocation.
	ActivityTool ActivityKind = "tool"
	// ActivityReasoning is a reasoning block.
	ActivityReasoning ActivityKind = "reasoning"
	// ActivityJustification is interstitial narration text that is not the
	// turn's final answer.
	ActivityJustification ActivityKind = "justification"
)

// ActivityPart is one classified part with the message it came from.
type ActivityPart struct {
	Kind      ActivityKind
	MessageID string
	Part      Part
}

// Segment is a group of activity parts anchored at a message. Sub-task tool
// invocations split segments: everything after a sub-task call belongs to a
// new segment.
type Segment struct {
	AnchorMessageID string
	Parts           []ActivityPart
}

// DiffStats aggregates file-change statistics from a turn's tool parts.
type DiffStats struct {
	FilesChanged int
	Additions    int
	Deletions    int
}

// TurnActivityInfo is the derived activity view of one turn.
type TurnActivityInfo struct {
	ActivityParts []ActivityPart
	Segments      []Segment
	HasTools      bool
	HasReasoning  bool
	SummaryBody   string
	DiffStats     *DiffStats
}

// finalAnswer locates the part holding the turn's final answer: the last
// text part in the last assistant message whose finish reason is "stop",
// scanning backward. Returns the message index and part index, or (-1, -1).
func finalAnswer(assistant []Message) (msgIdx, partIdx int) {
	for i := len(assistant) - 1; i >= 0; i-- {
		if assistant[i].Info.Finish != FinishStop {
			continue
		}
		for j := len(assistant[i].Parts) - 1; j >= 0; j-- {
			if assistant[i].Parts[j].Type == PartText && assistant[i].Parts[j].Text != "" {
				return i, j
			}
		}
	}
	return -1, -1
}

// GetTurnActivityInfo classifies a turn's assistant parts into activity and
// final answer. The final answer becomes SummaryBody; every other
// contentful part is activity (tool, reasoning, or justification text).
func GetTurnActivityInfo(turn Turn) TurnActivityInfo {
	info := TurnActivityInfo{}

	summaryMsg, summaryPart := finalAnswer(turn.AssistantMessages)
	if summaryMsg >= 0 {
		info.SummaryBody = turn.AssistantMessages[summaryMsg].Parts[summaryPart].Text
	}

	diff := DiffStats{}
	files := make(map[string]bool)

	for i, msg := range turn.AssistantMessages {
		for j, part := range msg.Parts {
			if i == summaryMsg && j == summaryPart {
				continue
			}
			switch part.Type {
			case PartTool:
				info.HasTools = true
				info.ActivityParts = append(info.ActivityParts, ActivityPart{
					Kind: ActivityTool, MessageID: msg.Info.ID, Part: part,
				})
				if part.Additions > 0 || part.Deletions > 0 {
					diff.Additions += part.Additions
					diff.Deletions += part.Deletions
					if part.File != "" {
						files[part.File] = true
					}
				}
			case PartReasoning:
				info.HasReasoning = true
				info.ActivityParts = append(info.ActivityParts, ActivityPart{
					Kind: ActivityReasoning, MessageID: msg.Info.ID, Part: part,
				})
			case PartText:
				if part.Text == "" {
					continue
				}
				info.ActivityParts = append(info.ActivityParts, ActivityPart{
					Kind: ActivityJustification, MessageID: msg.Info.ID, Part: part,
				})
			}
		}
	}

	if diff.Additions > 0 || diff.Deletions > 0 {
		diff.FilesChanged = len(files)
		info.DiffStats = &diff
	}

	info.Segments = segmentActivity(info.ActivityParts)
	return info
}

// segmentActivity splits activity at sub-task tool invocations and picks
// each segment's anchor message. The first segment anchors at the second
// message that contributes activity (so a single stray part before the real
// work doesn't dominate), falling back to the first contributor when there
// is only one; later segments anchor at their first contributor.
func segmentActivity(parts []ActivityPart) []Segment {
	if len(parts) == 0 {
		return nil
	}

	var segments []Segment
	current := Segment{}
	for _, part := range parts {
		current.Parts = append(current.Parts, part)
		if part.Kind == ActivityTool && part.Part.Tool == SubTaskTool {
			segments = append(segments, current)
			current = Segment{}
		}
	}
	if len(current.Parts) > 0 {
		segments = append(segments, current)
	}

	for i := range segments {
		segments[i].AnchorMessageID = anchorFor(segments[i].Parts, i == 0)
	}
	return segments
}

func anchorFor(parts []ActivityPart, first bool) string {
	var contributors []string
	seen := make(map[string]bool)
	for _, part := range parts {
		if !seen[part.MessageID] {
			seen[part.MessageID] = true
			contributors = append(contributors, part.MessageID)
		}
	}
	if len(contributors) == 0 {
		return ""
	}
	if first && len(contributors) > 1 {
		return contributors[1]
	}
	return contributors[0]
}
