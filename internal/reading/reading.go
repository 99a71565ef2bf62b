package reading

import (
	"time"

	"github.com/arcanaland/oracle/internal/card"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Reading is the result of a full consultation
type Reading struct {
	Reading   string      `json:"reading"`
	Cards     []card.Card `json:"cards"` // foundation, present, path forward
	Timestamp string      `json:"timestamp"`
	Question  string      `json:"question"`
	IsOffline bool        `json:"isOffline,omitempty"`
}

// QuickReading is a single-card follow-up
type QuickReading struct {
	Reading   string    `json:"reading"`
	Card      card.Card `json:"card"`
	Timestamp string    `json:"timestamp"`
	Question  string    `json:"question"`
	IsOffline bool      `json:"isOffline,omitempty"`
}

// Outcome says which terminal state produced a reading
type Outcome int

const (
	Succeeded Outcome = iota + 1
	FallenBack
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case FallenBack:
		return "fallen_back"
	default:
		return "unknown"
	}
}

// Result is either Succeeded or FallenBack; both carry a complete Reading.
// Cause holds the absorbed failure when the outcome is FallenBack.
type Result struct {
	Outcome Outcome
	Reading Reading
	Cause   error
}

// QuickResult is the single-card counterpart of Result
type QuickResult struct {
	Outcome Outcome
	Reading QuickReading
	Cause   error
}

// State is a step of a pipeline run
type State int

const (
	Idle State = iota
	Drawing
	Prompting
	Requesting
	StateSucceeded
	StateFallenBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case Prompting:
		return "prompting"
	case Requesting:
		return "requesting"
	case StateSucceeded:
		return "succeeded"
	case StateFallenBack:
		return "fallen_back"
	default:
		return "unknown"
	}
}

// ParseTimestamp reads a timestamp written by the pipeline
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
