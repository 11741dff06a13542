package proxy

import (
	"encoding/json"
	"net/http"
)

// Message is one chat message inside a completion payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// payloadView is the minimal slice of the completion payload the
// orchestrator reads. The payload itself is forwarded verbatim, so any
// generation parameters the caller sent ride along untouched.
type payloadView struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Request is one proxied completion call.
type Request struct {
	UpstreamEndpoint string
	CustomerEndpoint string
	ProjectID        string
	Payload          json.RawMessage
	Headers          http.Header
}

// Response is what the caller receives: the upstream body and status
// verbatim, with CacheHit set when it was served from the cache.
type Response struct {
	Status   int
	Body     json.RawMessage
	CacheHit bool
}

// usageBlock mirrors the usage counters of an OpenAI-style response. A
// missing block reads as all zeros.
type usageBlock struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func parseUsage(body json.RawMessage) usageBlock {
	var wrapper struct {
		Usage *usageBlock `json:"usage"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Usage == nil {
		return usageBlock{}
	}
	return *wrapper.Usage
}

// promptText joins message contents in order, role-agnostic.
func promptText(messages []Message) string {
	text := ""
	for i, m := range messages {
		if i > 0 {
			text += "\n"
		}
		text += m.Content
	}
	return text
}
