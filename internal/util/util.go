// Package util provides line helpers for the sectioned level file format.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// StripComment removes a # comment and the surrounding whitespace.
// A # inside double quotes is kept.
func StripComment(s string) string {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case '#':
			if !inQuotes {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return strings.TrimSpace(s)
}

// ParseSection recognises a section marker such as [Seats] or [/Seats].
// Surrounding whitespace is ignored.
func ParseSection(line string) (name string, closing, ok bool) {
	line = strings.TrimSpace(line)
	if len(line) < 3 || line[0] != '[' || line[len(line)-1] != ']' {
		return "", false, false
	}
	name = line[1 : len(line)-1]
	if strings.HasPrefix(name, "/") {
		closing = true
		name = name[1:]
	}
	if name == "" || strings.ContainsAny(name, "[]") {
		return "", false, false
	}
	return name, closing, true
}

// SplitKeyValue splits `key value...` at the first run of whitespace and
// strips quotes from the value.
func SplitKeyValue(line string) (key, value string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], TrimQuotes(strings.TrimSpace(line[i:]))
}
