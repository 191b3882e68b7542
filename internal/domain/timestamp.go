package domain

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// TimeLayout is the wire format of dateAdded
const TimeLayout = "2006-01-02 15:04:05"

// Timestamp accepts any common date layout on decode and encodes as TimeLayout, or null when zero
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(TimeLayout) + `"`), nil
}

// UnmarshalJSON leaves the value zero for null, empty or unparseable input
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := dateparse.ParseLocal(s)
	if err != nil {
		t.Time = time.Time{}
		return nil
	}
	t.Time = parsed
	return nil
}
