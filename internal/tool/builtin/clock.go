package builtin

import (
	"fmt"
	"strings"
	"time"

	toolcore "github.com/nate11235813/SonifiedLLMKit/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("clock", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &ClockTool{}, nil
	})
}

// ClockTool returns the current time.
type ClockTool struct {
	// now overrides the clock in tests.
	now func() time.Time
}

func (t *ClockTool) Name() string {
	return "clock"
}

func (t *ClockTool) Description() string {
	return "Get the current time, optionally shifted by a UTC offset."
}

func (t *ClockTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"utc_offset": map[string]interface{}{
				"type":        "string",
				"description": "UTC offset like +07:00 (optional)",
			},
		},
		"additionalProperties": false,
	}
}

func (t *ClockTool) Invoke(args map[string]interface{}) (*toolcore.Result, error) {
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	current := now().UTC()

	offset := ""
	if raw, ok := args["utc_offset"].(string); ok {
		offset = strings.TrimSpace(raw)
	}
	if offset != "" {
		seconds, err := parseUTCOffset(offset)
		if err != nil {
			return nil, err
		}
		current = current.Add(time.Duration(seconds) * time.Second)
	} else {
		offset = "+00:00"
	}

	return toolcore.NewResult(t.Name(), current.Format(time.RFC3339), map[string]interface{}{
		"utc_offset": offset,
	}), nil
}

func parseUTCOffset(offset string) (int, error) {
	if len(offset) != 6 {
		return 0, fmt.Errorf("invalid utc_offset format")
	}
	if offset[0] != '+' && offset[0] != '-' {
		return 0, fmt.Errorf("invalid utc_offset sign")
	}
	if offset[3] != ':' {
		return 0, fmt.Errorf("invalid utc_offset format")
	}
	if offset[1] < '0' || offset[1] > '9' ||
		offset[2] < '0' || offset[2] > '9' ||
		offset[4] < '0' || offset[4] > '9' ||
		offset[5] < '0' || offset[5] > '9' {
		return 0, fmt.Errorf("invalid utc_offset format")
	}

	hours := int(offset[1]-'0')*10 + int(offset[2]-'0')
	minutes := int(offset[4]-'0')*10 + int(offset[5]-'0')
	if hours > 23 || minutes > 59 {
		return 0, fmt.Errorf("invalid utc_offset value")
	}

	totalSeconds := hours*3600 + minutes*60
	if offset[0] == '-' {
		totalSeconds = -totalSeconds
	}
	return totalSeconds, nil
}
