package shape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clbanning/mxj/v2"
)

// Decode parses a shape response body into a generic tree for Normalize.
// XML bodies are detected by content type or a leading '<'. An empty body
// decodes to nil.
func Decode(body []byte, contentType string) (any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if strings.Contains(strings.ToLower(contentType), "xml") || body[0] == '<' {
		m, err := mxj.NewMapXml(body)
		if err != nil {
			return nil, fmt.Errorf("decode xml shape: %w", err)
		}
		return map[string]any(m), nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode json shape: %w", err)
	}
	return v, nil
}

// Empty reports whether a decoded payload carries nothing to normalize.
func Empty(payload any) bool {
	switch v := payload.(type) {
	case nil:
		return true
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	}
	return false
}
