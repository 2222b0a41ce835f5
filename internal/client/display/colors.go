package display

// Terminal color codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"

	HighlightBg = "\033[43m"
	CheckBg     = "\033[41m"
)

// Prompt returns a colored prompt string
func Prompt(text string) string {
	return Yellow + text + Yellow + " > " + Reset
}
