package arch

import "strings"

// ListFile parses the pacman database list-file format: blocks introduced
// by a %KEY% line, followed by content lines, terminated by a blank line
// or end of input. Multi-line values keep their embedded newlines.
type ListFile struct {
	entries map[string]string
}

// NewListFile creates an empty list file.
func NewListFile() *ListFile {
	return &ListFile{entries: make(map[string]string)}
}

// LoadData parses one desc or files member into the entry map. Calling it
// again merges further blocks, later keys winning.
func (l *ListFile) LoadData(data []byte) {
	var key string
	var value []string

	flush := func() {
		if key != "" {
			l.entries[key] = strings.Join(value, "\n")
		}
		key = ""
		value = nil
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case len(trimmed) > 2 && strings.HasPrefix(trimmed, "%") && strings.HasSuffix(trimmed, "%"):
			flush()
			key = trimmed[1 : len(trimmed)-1]
		case trimmed == "":
			flush()
		case key != "":
			value = append(value, line)
		}
	}
	flush()
}

// Entry returns the value of the given block key, or "" if absent.
func (l *ListFile) Entry(key string) string {
	return l.entries[key]
}
