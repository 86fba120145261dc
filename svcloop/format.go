package svcloop

import "strings"

// LogSinkMarker is prepended to every line by FormatForLogSink.
const LogSinkMarker = "."

// FormatForLogSink makes multi-line text survive log collectors that strip
// leading whitespace from every line, such as journald. Each line is prefixed
// with LogSinkMarker, and with four extra spaces if indentExtra is true, so
// stack trace indentation stays visible. The number of lines is preserved and
// the result never ends with a newline.
func FormatForLogSink(text string, indentExtra bool) string {
	prefix := LogSinkMarker
	if indentExtra {
		prefix += "    "
	}

	var b strings.Builder
	b.Grow(len(text) + (strings.Count(text, "\n")+1)*len(prefix))

	for _, line := range splitLines(text) {
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteByte('\n')
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// splitLines splits text into lines the way a line reader would: a trailing
// newline does not produce an empty last line, and \r\n is treated as \n.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	text = strings.TrimSuffix(text, "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}
