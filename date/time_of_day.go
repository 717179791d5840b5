package date

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is the wall-clock time of a trade within its trade date. It is only
// used to order trades which happened on the same day.
type TimeOfDay struct {
	offset time.Duration
}

var timeOfDayFormats = []string{"15:04:05", "15:04", "3:04:05 PM", "3:04 PM"}

func NewTimeOfDay(hour, min, sec int) TimeOfDay {
	return TimeOfDay{time.Duration(hour)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(sec)*time.Second}
}

// ParseTimeOfDay accepts 24h times with or without seconds, and 12h times with
// an AM/PM suffix. An empty string is midnight.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TimeOfDay{}, nil
	}
	for _, layout := range timeOfDayFormats {
		tm, err := time.Parse(layout, strings.ToUpper(s))
		if err == nil {
			return NewTimeOfDay(tm.Hour(), tm.Minute(), tm.Second()), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("Invalid time of day '%s'", s)
}

func (t TimeOfDay) Compare(u TimeOfDay) int {
	switch {
	case t.offset < u.offset:
		return -1
	case t.offset > u.offset:
		return 1
	}
	return 0
}

func (t TimeOfDay) String() string {
	secs := int(t.offset / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
