package prompt

import (
	"regexp"
	"strings"
)

var (
	ansiCSI    = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	hostnameRe = regexp.MustCompile(`@([a-zA-Z0-9.-]+)([:$#>])`)
	lineSplit  = regexp.MustCompile(`\r?\n`)
)

// StripANSI removes CSI escape sequences (colours, cursor movement).
func StripANSI(s string) string {
	return ansiCSI.ReplaceAllString(s, "")
}

// Lines splits terminal text on LF or CRLF.
func Lines(text string) []string {
	return lineSplit.Split(text, -1)
}

// LastLine returns the text after the final line break.
func LastLine(text string) string {
	lines := Lines(text)
	return lines[len(lines)-1]
}

// EndsLikePrompt reports whether the ANSI-stripped, trimmed line ends in
// $, # or >.
func EndsLikePrompt(line string) bool {
	clean := strings.TrimSpace(StripANSI(line))
	return strings.HasSuffix(clean, "$") || strings.HasSuffix(clean, "#") || strings.HasSuffix(clean, ">")
}

// LooksLikePrompt is the generic prompt test used when the session prompt is
// unknown or has changed: it ends like a prompt and carries user@host or
// a path separator.
func LooksLikePrompt(line string) bool {
	if !EndsLikePrompt(line) {
		return false
	}
	clean := StripANSI(line)
	return strings.Contains(clean, "@") || strings.Contains(clean, ":")
}

// Hostname extracts host from a user@host style prompt, or "" if none.
func Hostname(line string) string {
	m := hostnameRe.FindStringSubmatch(StripANSI(line))
	if m == nil {
		return ""
	}
	return m[1]
}

// CommandFromLine recovers the command typed on a rendered terminal line.
// A line ending with shellPrompt holds no command. Otherwise the text after
// the last occurrence of shellPrompt is used, then the text after the last
// "$ ", "# " or "> ", then the whole line.
func CommandFromLine(line, shellPrompt string) string {
	if shellPrompt != "" {
		if strings.HasSuffix(line, shellPrompt) {
			return ""
		}
		if i := strings.LastIndex(line, shellPrompt); i >= 0 {
			return strings.TrimSpace(line[i+len(shellPrompt):])
		}
	}
	for _, sep := range []string{"$ ", "# ", "> "} {
		if i := strings.LastIndex(line, sep); i >= 0 {
			return strings.TrimSpace(line[i+len(sep):])
		}
	}
	return strings.TrimSpace(line)
}
