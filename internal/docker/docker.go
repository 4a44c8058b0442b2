// Package docker recognises docker and podman invocations in captured
// command lines.
package docker

import (
	"regexp"
	"strings"
)

var (
	runtimePrefix = regexp.MustCompile(`^(sudo\s+)?(docker|podman)\b`)
	combinedTTY   = regexp.MustCompile(`\s-([a-zA-Z]*i[a-zA-Z]*t[a-zA-Z]*|[a-zA-Z]*t[a-zA-Z]*i[a-zA-Z]*)\b`)
	separateI     = regexp.MustCompile(`\s-i\b`)
	separateT     = regexp.MustCompile(`\s-t\b`)
)

// IsContainerCommand reports whether cmd starts with docker or podman,
// optionally behind sudo.
func IsContainerCommand(cmd string) bool {
	return Runtime(cmd) != ""
}

// MentionsRuntime reports whether docker or podman appears anywhere in cmd,
// e.g. inside a pipeline or after env assignments.
func MentionsRuntime(cmd string) bool {
	return strings.Contains(cmd, "docker") || strings.Contains(cmd, "podman")
}

// HasInteractiveTTY reports whether a docker or podman command line asks for
// both stdin and a tty, either combined (-it, -ti, -dit) or as separate
// -i and -t flags.
func HasInteractiveTTY(cmd string) bool {
	if !MentionsRuntime(cmd) {
		return false
	}
	if combinedTTY.MatchString(cmd) {
		return true
	}
	return separateI.MatchString(cmd) && separateT.MatchString(cmd)
}

// Runtime returns "docker" or "podman" for a container command, else "".
func Runtime(cmd string) string {
	m := runtimePrefix.FindStringSubmatch(strings.TrimSpace(cmd))
	if m == nil {
		return ""
	}
	return m[2]
}
