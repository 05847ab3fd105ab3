// ABOUTME: Conversation transcript aggregation
// ABOUTME: Merges incremental speech fragments per role into an ordered log
package transcript

import "strings"

// Placeholder is emitted when a session ends with no recorded speech
const Placeholder = "No conversation recorded."

// Role identifies who produced a transcript fragment
type Role int

const (
	RoleCandidate Role = iota
	RoleInterviewer
)

// String returns the display label for the role
func (r Role) String() string {
	switch r {
	case RoleCandidate:
		return "Candidate"
	case RoleInterviewer:
		return "Interviewer"
	default:
		return "Unknown"
	}
}

// Entry is one contiguous turn in the conversation log
type Entry struct {
	Role Role
	Text string
}

// Log accumulates incremental transcript fragments. Consecutive fragments
// from the same role merge into a single entry, so no role ever appears
// twice adjacently.
type Log struct {
	entries []Entry
	raw     strings.Builder
}

// New creates an empty transcript log
func New() *Log {
	return &Log{}
}

// Append folds a fragment into the log. Empty fragments are ignored.
func (l *Log) Append(role Role, fragment string) {
	if fragment == "" {
		return
	}

	if n := len(l.entries); n > 0 && l.entries[n-1].Role == role {
		l.entries[n-1].Text += fragment
		return
	}
	l.entries = append(l.entries, Entry{Role: role, Text: fragment})
}

// AppendRaw accumulates text outside the role-tagged log. It serves as a
// fallback source when no tagged fragments ever arrive.
func (l *Log) AppendRaw(fragment string) {
	l.raw.WriteString(fragment)
}

// Entries returns a copy of the current log for display
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of merged entries
func (l *Log) Len() int {
	return len(l.entries)
}

// Final flattens the log into "{Role}: {text}" lines joined by blank
// lines. Falls back to the raw buffer, then to the placeholder.
func (l *Log) Final() string {
	if len(l.entries) == 0 {
		if raw := strings.TrimSpace(l.raw.String()); raw != "" {
			return raw
		}
		return Placeholder
	}

	lines := make([]string, len(l.entries))
	for i, e := range l.entries {
		lines[i] = e.Role.String() + ": " + strings.TrimSpace(e.Text)
	}
	return strings.Join(lines, "\n\n")
}

// Reset clears all entries and the raw buffer
func (l *Log) Reset() {
	l.entries = nil
	l.raw.Reset()
}
