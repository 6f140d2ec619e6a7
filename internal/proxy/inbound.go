package proxy

// inboundRequest is the decoded client body for POST /v1/chat/completions.
// raw retains every field the client sent (generation parameters, any
// vendor extensions) so nothing is silently dropped on the way to the
// backend; model and messages are pulled out for the pipeline to mutate.
type inboundRequest struct {
	raw            map[string]any
	model          string
	messages       []map[string]any
	stream         bool
	conversationID string
}

func parseInbound(raw map[string]any) *inboundRequest {
	in := &inboundRequest{raw: raw}
	in.model, _ = raw["model"].(string)
	in.stream, _ = raw["stream"].(bool)
	in.conversationID, _ = raw["conversation_id"].(string)

	if rawMsgs, ok := raw["messages"].([]any); ok {
		for _, rm := range rawMsgs {
			if m, ok := rm.(map[string]any); ok {
				in.messages = append(in.messages, m)
			}
		}
	}
	return in
}

// lastUserIndex returns the index of the last role:"user" message, or -1.
func lastUserIndex(messages []map[string]any) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if role, _ := messages[i]["role"].(string); role == "user" {
			return i
		}
	}
	return -1
}

// genParamKeys lists the generation parameters the overlay (and the
// client body) may carry; everything else in the body is routing/transport
// metadata the backend doesn't need.
var genParamKeys = []string{
	"temperature", "top_p", "top_k", "max_tokens", "repeat_penalty",
	"context_window", "seed", "stop", "presence_penalty", "frequency_penalty",
}

func extractGenParams(raw map[string]any) map[string]any {
	out := make(map[string]any, len(genParamKeys))
	for _, k := range genParamKeys {
		if v, ok := raw[k]; ok {
			out[k] = v
		}
	}
	return out
}
