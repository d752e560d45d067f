package gateway

import (
	"encoding/json"
	"errors"
)

// replyFields are the JSON keys a chat response may carry its text
// under, tried in order. Different dialogue backend versions have used
// different names.
var replyFields = []string{"response_text", "response", "message", "reply", "text"}

var errNoReplyField = errors.New("gateway: chat response carries no recognized reply field")

// extractReply pulls the NPC reply out of a chat response body. The
// body may be a JSON object holding the text under any of the known
// field names, or a bare JSON string.
func extractReply(body []byte) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, field := range replyFields {
			raw, ok := obj[field]
			if !ok {
				continue
			}
			var text string
			if err := json.Unmarshal(raw, &text); err == nil {
				return text, nil
			}
		}
		return "", errNoReplyField
	}

	var text string
	if err := json.Unmarshal(body, &text); err == nil {
		return text, nil
	}
	return "", errNoReplyField
}
