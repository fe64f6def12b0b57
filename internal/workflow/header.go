package workflow

import (
	"time"

	"github.com/aristath/testscriptgen/internal/api"
)

// NotSet is shown for timestamps the backend hasn't filled in.
const NotSet = "Not set"

// Header is the summary line shown above a task's tabs.
type Header struct {
	Name      string
	Status    api.TaskStatus
	Created   string
	Initiated string
}

// TaskHeader formats the header for a task.
func TaskHeader(t *api.Task) Header {
	if t == nil {
		return Header{Created: NotSet, Initiated: NotSet}
	}
	return Header{
		Name:      t.Name,
		Status:    t.Status,
		Created:   FormatTimestamp(t.CreatedAt),
		Initiated: FormatTimestamp(t.InitiatedAt),
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// FormatTimestamp renders a backend timestamp in local time. Unparseable
// values are shown as-is.
func FormatTimestamp(raw string) string {
	if raw == "" {
		return NotSet
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.Local().Format("2006-01-02 15:04:05")
		}
	}
	return raw
}
