package game

import "fmt"

// Action is a stage-game move.
type Action byte

const (
	// NoAction marks the absence of a previous move.
	NoAction  Action = 0
	Cooperate Action = 'C'
	Defect    Action = 'D'
)

func (a Action) Valid() bool {
	return a == Cooperate || a == Defect
}

// Flip inverts a valid action and leaves anything else untouched.
func (a Action) Flip() Action {
	switch a {
	case Cooperate:
		return Defect
	case Defect:
		return Cooperate
	default:
		return a
	}
}

func (a Action) String() string {
	switch a {
	case Cooperate:
		return "C"
	case Defect:
		return "D"
	case NoAction:
		return "-"
	default:
		return fmt.Sprintf("Action(%d)", byte(a))
	}
}

func ParseAction(s string) (Action, error) {
	switch s {
	case "C", "c":
		return Cooperate, nil
	case "D", "d":
		return Defect, nil
	case "-", "":
		return NoAction, nil
	default:
		return NoAction, fmt.Errorf("unknown action: %q", s)
	}
}

func (a Action) MarshalText() ([]byte, error) {
	if a != NoAction && !a.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", a)
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
