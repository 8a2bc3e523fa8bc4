package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"ArticleDesk/internal/domain"
)

// Decode parses an analyzer response into the canonical Analysis. The
// payload must be a JSON object, optionally wrapped in a markdown fence.
func Decode(payload []byte) (domain.Analysis, error) {
	body := stripFence(payload)

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if raw == nil {
		return domain.Analysis{}, fmt.Errorf("%w: empty object", domain.ErrParse)
	}

	canonical, err := json.Marshal(Normalize(raw))
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	var out domain.Analysis
	if err := json.Unmarshal(canonical, &out); err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return out, nil
}

// IsBadLink reports whether the analyzer flagged the page as not an article.
func IsBadLink(a domain.Analysis) bool {
	return a.TLDR == BadLinkMarker
}

func stripFence(payload []byte) []byte {
	body := bytes.TrimSpace(payload)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = bytes.TrimPrefix(body, []byte("```"))
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}
