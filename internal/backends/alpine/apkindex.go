package alpine

import (
	"bufio"
	"io"
	"strings"
)

// indexEntry is one parsed APKINDEX record. Records are structurally
// complete once flushed; missing-field validation happens at the Package
// layer, not here.
type indexEntry struct {
	Name        string // P
	Version     string // V
	Arch        string // A
	Maintainer  string // m
	Description string // T
}

// parseAPKIndex parses the newline-delimited APKINDEX blob. A record is a
// run of non-blank lines, each either "key: value" or, when it carries no
// colon, a continuation of the previous line joined with a space before
// the colon is located. Unknown keys are ignored for forward
// compatibility. Remaining buffered lines are flushed as a final record
// at end of stream.
func parseAPKIndex(r io.Reader) ([]indexEntry, error) {
	var entries []indexEntry
	var logical []string

	flush := func() {
		if len(logical) == 0 {
			return
		}
		var e indexEntry
		for _, line := range logical {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			switch strings.TrimSpace(key) {
			case "P":
				e.Name = value
			case "V":
				e.Version = value
			case "A":
				e.Arch = value
			case "m":
				e.Maintainer = value
			case "T":
				e.Description = value
			}
		}
		entries = append(entries, e)
		logical = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if !strings.Contains(line, ":") && len(logical) > 0 {
			logical[len(logical)-1] += " " + line
			continue
		}
		logical = append(logical, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return entries, nil
}
