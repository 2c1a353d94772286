// Package verdict holds the classification prompt and response parser shared
// by every language model backend.
package verdict

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/reply-intel/internal/core"
)

// SystemPrompt is sent as the system message by backends that support one
const SystemPrompt = "You categorize replies to cold outreach emails. Respond only with JSON."

const promptFormat = `Analyze this email reply from a cold outreach campaign and categorize the lead's interest level.

Subject: %s

Reply:
%s

Categorize this reply as one of:
- hot: strong buying signals, wants to talk, meet or get pricing
- warm: shows interest, asks questions, wants more information
- cold: not interested, unsubscribe, already has a solution
- auto_reply: out of office, vacation, automated response
- unclear: intent cannot be determined from the message

Respond with a JSON object and nothing else:
{"category": "hot|warm|cold|auto_reply|unclear", "confidence": 0-100, "reason": "brief explanation"}`

// Response is the JSON object the model is asked to produce
type Response struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Prompt formats the user prompt for one reply
func Prompt(req core.ClassifyRequest) string {
	return fmt.Sprintf(promptFormat, req.Subject, req.Body)
}

// Parse extracts a verdict from raw model output. Categories other than hot
// and warm fold to cold; anything unreadable is ErrMalformedResponse.
func Parse(text, model string) (*core.SemanticVerdict, error) {
	raw := extractJSON(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in %q", core.ErrMalformedResponse, clip(text))
	}

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}

	var tier core.Tier
	switch strings.ToLower(strings.TrimSpace(resp.Category)) {
	case "hot":
		tier = core.TierHot
	case "warm":
		tier = core.TierWarm
	case "cold", "auto_reply", "unclear":
		tier = core.TierCold
	default:
		return nil, fmt.Errorf("%w: unknown category %q", core.ErrMalformedResponse, resp.Category)
	}

	return &core.SemanticVerdict{Tier: tier, Rationale: resp.Reason, Model: model}, nil
}

// extractJSON strips markdown fences and returns the outermost {...} span
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		text = strings.TrimSpace(rest)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func clip(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
