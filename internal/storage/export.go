package storage

import "github.com/beigebox/beigebox/pkg/bbtypes"

// OpenAIChat is one conversation in the OpenAI-list export format: a bare
// conversation id plus its message list.
type OpenAIChat struct {
	ConversationID string             `json:"conversation_id"`
	Messages       []OpenAIChatEntry  `json:"messages"`
}

// OpenAIChatEntry is one message within an OpenAIChat export.
type OpenAIChatEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
}

// ExportOpenAIList projects export records into the OpenAI-list format.
func ExportOpenAIList(records []ExportRecord) []OpenAIChat {
	out := make([]OpenAIChat, 0, len(records))
	for _, r := range records {
		entries := make([]OpenAIChatEntry, 0, len(r.Messages))
		for _, m := range r.Messages {
			entries = append(entries, OpenAIChatEntry{
				Role:      string(m.Role),
				Content:   m.Content,
				Model:     m.Model,
				Timestamp: m.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			})
		}
		out = append(out, OpenAIChat{ConversationID: r.ConversationID, Messages: entries})
	}
	return out
}

// JSONLRecord is one fine-tuning-ready conversation: role/content pairs
// with every other field stripped.
type JSONLRecord struct {
	Messages []JSONLMessage `json:"messages"`
}

// JSONLMessage is a bare role/content pair.
type JSONLMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ExportJSONL keeps only user/assistant turns, optionally filtered to a
// single model, and drops any conversation without at least one pair of
// each role.
func ExportJSONL(records []ExportRecord, modelFilter string) []JSONLRecord {
	var out []JSONLRecord
	for _, r := range records {
		var msgs []JSONLMessage
		roles := map[bbtypes.Role]bool{}
		for _, m := range r.Messages {
			if m.Role != bbtypes.RoleUser && m.Role != bbtypes.RoleAssistant {
				continue
			}
			if modelFilter != "" && m.Model != modelFilter {
				continue
			}
			msgs = append(msgs, JSONLMessage{Role: string(m.Role), Content: m.Content})
			roles[m.Role] = true
		}
		if roles[bbtypes.RoleUser] && roles[bbtypes.RoleAssistant] {
			out = append(out, JSONLRecord{Messages: msgs})
		}
	}
	return out
}

// AlpacaRecord is one instruction/output pair.
type AlpacaRecord struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// ExportAlpaca walks each conversation pairing a user message with the
// assistant message immediately following it.
func ExportAlpaca(records []ExportRecord, modelFilter string) []AlpacaRecord {
	var out []AlpacaRecord
	for _, r := range records {
		var msgs []bbtypes.Message
		for _, m := range r.Messages {
			if m.Role != bbtypes.RoleUser && m.Role != bbtypes.RoleAssistant {
				continue
			}
			if modelFilter != "" && m.Model != modelFilter {
				continue
			}
			msgs = append(msgs, m)
		}
		for i := 0; i < len(msgs)-1; {
			if msgs[i].Role == bbtypes.RoleUser && msgs[i+1].Role == bbtypes.RoleAssistant {
				out = append(out, AlpacaRecord{
					Instruction: msgs[i].Content,
					Input:       "",
					Output:      msgs[i+1].Content,
				})
				i += 2
			} else {
				i++
			}
		}
	}
	return out
}

// ShareGPTRecord is one ShareGPT-format conversation.
type ShareGPTRecord struct {
	ID            string              `json:"id"`
	Conversations []ShareGPTTurn      `json:"conversations"`
}

// ShareGPTTurn is one turn in a ShareGPTRecord.
type ShareGPTTurn struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

var shareGPTRoleMap = map[bbtypes.Role]string{
	bbtypes.RoleUser:      "human",
	bbtypes.RoleAssistant: "gpt",
	bbtypes.RoleSystem:    "system",
}

// ExportShareGPT projects conversations into the ShareGPT dialogue format,
// keeping only conversations that have at least one human and one gpt turn.
func ExportShareGPT(records []ExportRecord, modelFilter string) []ShareGPTRecord {
	var out []ShareGPTRecord
	for _, r := range records {
		var turns []ShareGPTTurn
		roles := map[string]bool{}
		for _, m := range r.Messages {
			from, ok := shareGPTRoleMap[m.Role]
			if !ok {
				continue
			}
			if modelFilter != "" && m.Model != modelFilter {
				continue
			}
			turns = append(turns, ShareGPTTurn{From: from, Value: m.Content})
			roles[from] = true
		}
		if roles["human"] && roles["gpt"] {
			out = append(out, ShareGPTRecord{ID: r.ConversationID, Conversations: turns})
		}
	}
	return out
}
