package core

type Color byte

const (
	ColorNone Color = iota
	ColorWhite
	ColorBlack
)

func (c Color) String() string {
	switch c {
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	default:
		return "none"
	}
}

// Short returns the FEN side-to-move letter
func (c Color) Short() string {
	switch c {
	case ColorWhite:
		return "w"
	case ColorBlack:
		return "b"
	default:
		return "-"
	}
}

func OppositeColor(c Color) Color {
	switch c {
	case ColorWhite:
		return ColorBlack
	case ColorBlack:
		return ColorWhite
	default:
		return ColorNone
	}
}

// ParseColor accepts "white", "black", "w" and "b"
func ParseColor(s string) (Color, bool) {
	switch s {
	case "white", "w":
		return ColorWhite, true
	case "black", "b":
		return ColorBlack, true
	default:
		return ColorNone, false
	}
}

// Mode is the game mode; it decides which sides accept user moves
type Mode int

const (
	ModeHumanVsHuman Mode = iota
	ModeHumanVsAutomated
	ModeAutomatedVsAutomated
)

func (m Mode) String() string {
	switch m {
	case ModeHumanVsHuman:
		return "human-vs-human"
	case ModeHumanVsAutomated:
		return "human-vs-automated"
	case ModeAutomatedVsAutomated:
		return "automated-vs-automated"
	default:
		return "unknown"
	}
}

// Automated reports whether any side of the mode is driven by the backend
func (m Mode) Automated() bool {
	return m == ModeHumanVsAutomated || m == ModeAutomatedVsAutomated
}

// ParseMode accepts the long names and the short forms hh, ha, aa
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "hh", "human-vs-human":
		return ModeHumanVsHuman, true
	case "ha", "human-vs-automated":
		return ModeHumanVsAutomated, true
	case "aa", "automated-vs-automated":
		return ModeAutomatedVsAutomated, true
	default:
		return ModeHumanVsHuman, false
	}
}

// ErrorKind classifies a failed automated move request
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorRateLimited
	ErrorUnauthorized
	ErrorServiceUnavailable
	ErrorUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorRateLimited:
		return "rateLimited"
	case ErrorUnauthorized:
		return "unauthorized"
	case ErrorServiceUnavailable:
		return "serviceUnavailable"
	default:
		return "unknown"
	}
}

// Message returns the human-readable text shown for a failure of this kind
func (k ErrorKind) Message() string {
	switch k {
	case ErrorNone:
		return ""
	case ErrorRateLimited:
		return "The move service is rate limited or out of quota. Automated play is paused."
	case ErrorUnauthorized:
		return "The API key was rejected. Configure a valid key to continue."
	case ErrorServiceUnavailable:
		return "The move service is unavailable. Check the connection and retry."
	default:
		return "The automated opponent failed to produce a move. Automated play is paused."
	}
}

// Termination is the reason a game ended
type Termination int

const (
	TerminationNone Termination = iota
	TerminationCheckmate
	TerminationDraw
)

func (t Termination) String() string {
	switch t {
	case TerminationCheckmate:
		return "checkmate"
	case TerminationDraw:
		return "draw"
	default:
		return "none"
	}
}

// Outcome describes whether a position ends the game
type Outcome struct {
	Termination Termination `json:"termination"`
	Winner      Color       `json:"winner,omitempty"` // ColorNone for draws
	Method      string      `json:"method,omitempty"` // e.g. "Stalemate", "InsufficientMaterial"
}

func (o Outcome) Over() bool {
	return o.Termination != TerminationNone
}

func (o Outcome) String() string {
	switch o.Termination {
	case TerminationCheckmate:
		return "Checkmate, " + o.Winner.String() + " wins"
	case TerminationDraw:
		if o.Method != "" {
			return "Draw by " + o.Method
		}
		return "Draw"
	default:
		return "Ongoing"
	}
}
