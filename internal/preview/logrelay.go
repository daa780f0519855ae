package preview

import (
	"regexp"
	"strings"
)

// controlPattern matches ANSI escape sequences (CSI and OSC) and bare
// carriage returns emitted by npm and dev-server progress output.
var controlPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07]*\x07|\x1b[()][0-9A-B]|\r`)

// spinnerRunes are the frame characters progress spinners cycle through.
const spinnerRunes = "⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏◐◓◑◒|/-\\"

const spinnerIndicator = "..."

// StripControl removes terminal control sequences from a process output
// line.
func StripControl(line string) string {
	return controlPattern.ReplaceAllString(line, "")
}

// Relay forwards process output line-by-line after stripping control
// sequences, collapsing runs of adjacent spinner frames into a single
// indicator line so the relayed log stays readable.
type Relay struct {
	onLog     func(string)
	inSpinner bool
}

func NewRelay(onLog func(string)) *Relay {
	if onLog == nil {
		onLog = func(string) {}
	}
	return &Relay{onLog: onLog}
}

func (r *Relay) Line(raw string) {
	line := StripControl(raw)
	if strings.TrimSpace(line) == "" {
		return
	}

	if isSpinnerLine(line) {
		if r.inSpinner {
			return
		}
		r.inSpinner = true
		r.onLog(spinnerIndicator)
		return
	}

	r.inSpinner = false
	r.onLog(line)
}

func isSpinnerLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	first := []rune(trimmed)[0]
	return strings.ContainsRune(spinnerRunes, first)
}
