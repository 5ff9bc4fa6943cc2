package session

import "time"

// Decision is the user's answer to a resume prompt.
type Decision int

const (
	DecisionResume Decision = iota
	DecisionStartOver
)

func (d Decision) String() string {
	switch d {
	case DecisionResume:
		return "resume"
	case DecisionStartOver:
		return "start_over"
	default:
		return "unknown"
	}
}

// Prompt carries what the UI needs to render a resume offer. FromHide
// distinguishes the return-from-hidden prompt (session already open)
// from the page-load prompt (session still to be reopened).
type Prompt struct {
	ViewID           string
	PlayheadPosition float64
	WatchTimeSeconds float64
	UpdatedAt        time.Time
	FromHide         bool
}

// Prompter presents resume offers to the user. The answer comes back
// through Manager.Decide, not through the Prompter.
type Prompter interface {
	Show(Prompt)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(Prompt)

func (f PrompterFunc) Show(p Prompt) { f(p) }
