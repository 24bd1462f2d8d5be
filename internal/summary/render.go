package summary

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const renderTimeLayout = "2006-01-02 15:04:05"

// Render writes the plain text form of a summary:
// a header line, the repair summary, then one line per event.
func Render(w io.Writer, s IssueSummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s (%s)", s.Serial, orNA(s.BoardModel))
	if s.Assignee != "" {
		fmt.Fprintf(&b, " [%s]", Initials(s.Assignee))
	}
	fmt.Fprintf(&b, "\n%s\n", orNA(s.RepairSummary))

	for _, ev := range s.Events {
		stamp := ev.Time.UTC().Format(renderTimeLayout)
		switch ev.Type {
		case EventStatusChange:
			fmt.Fprintf(&b, "%s (%s) %s (%s)\n", stamp, Initials(ev.Author), ev.To, HumanLength(ev))
		case EventComment:
			fmt.Fprintf(&b, "%s (%s)     %s\n", stamp, Initials(ev.Author), ev.Body)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// HumanLength renders how long a status lasted.
func HumanLength(ev Event) string {
	d := ev.Length()
	if d < 0 {
		return "current"
	}
	start := ev.Time
	return strings.TrimSpace(humanize.RelTime(start, start.Add(d), "", ""))
}

// Initials abbreviates a display name, "Dana Smith" becomes "DS".
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r := []rune(word)
		b.WriteString(strings.ToUpper(string(r[0])))
	}
	return b.String()
}

// Progress renders a progress marker line.
func Progress(current, total int) string {
	return fmt.Sprintf("Total Issues: %s, Processing at: %s", humanize.Comma(int64(total)), humanize.Comma(int64(current)))
}

// Age renders how long ago t happened relative to now.
func Age(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}
