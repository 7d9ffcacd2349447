package crew

import (
	"regexp"
	"time"
)

const (
	// CurrentTimeLayout formats Inputs.CurrentTime.
	CurrentTimeLayout = "2006-01-02 15:04:05"
	rangeLayout       = "2006-01-02"
)

// Inputs are the values interpolated into roles and tasks for one run.
type Inputs struct {
	CurrentTime string
	Topic       string
	WeekRange   string
	MonthRange  string
}

// NewInputs derives the run inputs from a single clock reading.
func NewInputs(now time.Time, topic string) Inputs {
	return Inputs{
		CurrentTime: now.Format(CurrentTimeLayout),
		Topic:       topic,
		WeekRange:   "after:" + now.AddDate(0, 0, -7).Format(rangeLayout),
		MonthRange:  "after:" + now.AddDate(0, 0, -30).Format(rangeLayout),
	}
}

// Map returns the placeholder name to value mapping.
func (in Inputs) Map() map[string]string {
	return map[string]string{
		"current_time": in.CurrentTime,
		"topic":        in.Topic,
		"week_range":   in.WeekRange,
		"month_range":  in.MonthRange,
	}
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces {name} placeholders with values from vars.
// Unknown placeholders are left untouched.
func Interpolate(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}

	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		if v, ok := vars[match[1:len(match)-1]]; ok {
			return v
		}
		return match
	})
}
