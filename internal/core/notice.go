package core

type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeInfo
	NoticeError    // automated request failure, auto-dismissed
	NoticeGameOver // stays until dismissed or reset
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeInfo:
		return "info"
	case NoticeError:
		return "error"
	case NoticeGameOver:
		return "gameOver"
	default:
		return "none"
	}
}

// Notice is the message currently surfaced to the user. Seq identifies the
// notice so a delayed dismissal cannot clear a newer one.
type Notice struct {
	Kind  NoticeKind `json:"kind"`
	Error ErrorKind  `json:"error,omitempty"`
	Text  string     `json:"text,omitempty"`
	Seq   uint64     `json:"seq,omitempty"`
}

func (n Notice) Active() bool {
	return n.Kind != NoticeNone
}
