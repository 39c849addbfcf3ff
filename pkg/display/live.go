package display

import (
	"fmt"
	"io"

	"trainsync/pkg/samples"
	"trainsync/pkg/workout"
)

// clearSequence clears the screen and homes the cursor.
const clearSequence = "\033[2J\033[H"

// Live repaints a session view in place while recording runs.
type Live struct {
	w           io.Writer
	formatter   Formatter
	clearScreen bool
}

// NewLive creates a live session view writing to w.
//
// Parameters:
//   - w: Output writer, typically stdout
//   - formatter: Formatter used for each frame
//   - clearScreen: Clear the terminal before each frame
//
// Returns a configured Live view.
func NewLive(w io.Writer, formatter Formatter, clearScreen bool) *Live {
	return &Live{
		w:           w,
		formatter:   formatter,
		clearScreen: clearScreen,
	}
}

// Render draws one frame of the live view.
func (l *Live) Render(sess workout.Session, vitals samples.Vitals) error {
	if l.clearScreen {
		if _, err := fmt.Fprint(l.w, clearSequence); err != nil {
			return err
		}
	}
	return l.formatter.FormatSession(l.w, sess, vitals)
}
