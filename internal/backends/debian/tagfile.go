package debian

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strings"
)

// TagSection is one RFC822-style stanza of a Debian control file, keyed
// by field name. Continuation lines are joined with newlines, with the
// leading continuation space stripped.
type TagSection map[string]string

// ParseTagFile parses a Debian control-style file (Packages, Translation
// or a .deb control member) into its stanzas. Stanzas are separated by
// blank lines; a line starting with space or tab continues the previous
// field.
func ParseTagFile(r io.Reader) ([]TagSection, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var sections []TagSection
	cur := make(TagSection)
	lastKey := ""
	flush := func() {
		if len(cur) > 0 {
			sections = append(sections, cur)
			cur = make(TagSection)
		}
		lastKey = ""
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if lastKey == "" {
				return nil, fmt.Errorf("continuation line without a field: %q", line)
			}
			cur[lastKey] += "\n" + strings.TrimLeft(line, " \t")
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed control line: %q", line)
		}
		lastKey = key
		cur[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan control file: %w", err)
	}
	flush()
	return sections, nil
}

// splitDescription separates a Description field into its summary (the
// first line) and the long description body.
func splitDescription(desc string) (summary, long string) {
	summary, long, _ = strings.Cut(desc, "\n")
	return strings.TrimSpace(summary), long
}

// renderDescriptionHTML converts a Debian long description into simple
// HTML paragraphs. A line consisting of a single dot separates
// paragraphs; everything else is escaped verbatim.
func renderDescriptionHTML(long string) string {
	var b strings.Builder
	var para []string
	writePara := func() {
		if len(para) == 0 {
			return
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(strings.Join(para, " ")))
		b.WriteString("</p>")
		para = para[:0]
	}
	for _, line := range strings.Split(long, "\n") {
		line = strings.TrimSpace(line)
		if line == "." || line == "" {
			writePara()
			continue
		}
		para = append(para, line)
	}
	writePara()
	return b.String()
}
