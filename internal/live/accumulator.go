package live

import "strings"

// turnAccumulator assembles the in-order text fragments of one model turn.
// Exactly one logical turn is open at a time; the buffer is cleared when a
// turn completes or when a new request is issued, whichever happens first.
type turnAccumulator struct {
	buf strings.Builder
}

func (a *turnAccumulator) append(fragment string) {
	a.buf.WriteString(fragment)
}

// flush returns the assembled turn text and clears the buffer.
func (a *turnAccumulator) flush() string {
	text := a.buf.String()
	a.buf.Reset()
	return text
}

// reset discards any buffered text from an unterminated turn.
func (a *turnAccumulator) reset() {
	a.buf.Reset()
}

func (a *turnAccumulator) len() int {
	return a.buf.Len()
}
