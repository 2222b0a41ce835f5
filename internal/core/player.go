package core

// Owner is who produces the next move for a side
type Owner int

const (
	OwnerNobody Owner = iota
	OwnerHuman
	OwnerAutomated
)

func (o Owner) String() string {
	switch o {
	case OwnerHuman:
		return "human"
	case OwnerAutomated:
		return "automated"
	default:
		return "nobody"
	}
}

// DefaultModel is used when a side has no model selected
const DefaultModel = "gpt-4o-mini"

// Models holds the model selection per automated side
type Models struct {
	White string `json:"white,omitempty"`
	Black string `json:"black,omitempty"`
}

// For returns the model for a side, empty when unselected
func (m Models) For(c Color) string {
	if c == ColorBlack {
		return m.Black
	}
	return m.White
}

// With returns a copy with the model for a side replaced
func (m Models) With(c Color, model string) Models {
	if c == ColorBlack {
		m.Black = model
	} else {
		m.White = model
	}
	return m
}
