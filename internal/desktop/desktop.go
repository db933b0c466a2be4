// Package desktop implements a minimal desktop-entry key/value parser.
// Only the main [Desktop Entry] group is read; extension (X-*) keys are
// retained verbatim because the Ubuntu backend needs the gettext-domain
// hints from them.
package desktop

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Entry represents the main group of a .desktop file.
type Entry struct {
	Type       string
	Name       string
	Comment    string
	Icon       string
	Categories []string
	NoDisplay  bool

	// Keys holds every key of the main group, including X-* extensions.
	Keys map[string]string
}

// Parse parses a .desktop file from a reader.
func Parse(r io.Reader) (*Entry, error) {
	entry := &Entry{Keys: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	inMainGroup := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			inMainGroup = line == "[Desktop Entry]"
			continue
		}
		if !inMainGroup {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		entry.Keys[key] = value

		switch key {
		case "Type":
			entry.Type = value
		case "Name":
			entry.Name = value
		case "Comment":
			entry.Comment = value
		case "Icon":
			entry.Icon = value
		case "Categories":
			entry.Categories = parseSemicolonList(value)
		case "NoDisplay":
			entry.NoDisplay = value == "true"
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan desktop file: %w", err)
	}
	return entry, nil
}

// GettextDomain returns the translation domain of the entry. Ubuntu ships
// its own key, with the older GNOME spelling as fallback.
func (e *Entry) GettextDomain() string {
	if domain := e.Keys["X-Ubuntu-Gettext-Domain"]; domain != "" {
		return domain
	}
	return e.Keys["X-GNOME-Gettext-Domain"]
}

func parseSemicolonList(value string) []string {
	parts := strings.Split(value, ";")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
