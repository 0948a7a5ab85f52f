package tools

import (
	"context"
	"fmt"
	"time"
)

// ClockTool reports the current time, optionally in a named IANA zone.
type ClockTool struct {
	// now is swappable for tests.
	now func() time.Time
}

func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (t *ClockTool) Name() string { return "current_time" }

func (t *ClockTool) Description() string {
	return "Get the current date and time. Optionally pass an IANA timezone like \"Asia/Ho_Chi_Minh\" or \"UTC\"."
}

func (t *ClockTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"timezone": map[string]interface{}{
				"type":        "string",
				"description": "IANA timezone name (default: local time)",
			},
		},
	}
}

func (t *ClockTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	loc := time.Local
	if tz, _ := args["timezone"].(string); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return ErrorResult(fmt.Sprintf("current_time: unknown timezone %q", tz)).WithError(err)
		}
		loc = parsed
	}
	now := t.now().In(loc)
	return NewResult(now.Format("Monday, 2 January 2006 15:04:05 MST"))
}
