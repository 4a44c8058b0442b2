package capture

import "regexp"

var (
	oscSequence    = regexp.MustCompile(`\x1b\][0-9;]+.*?(?:\x07|\x1b\\)`)
	listingPaste   = regexp.MustCompile(`^[-d][rwx-]{9}\s+`)
	escapeArtifact = regexp.MustCompile(`^\[[A-Z]|^\x1b`)
	dirtyInput     = regexp.MustCompile(`\x1b|\[[A-Z]`)
)

// StripOSC removes OSC sequences such as window-title updates.
func StripOSC(s string) string {
	return oscSequence.ReplaceAllString(s, "")
}

// isListingPaste matches a pasted `ls -l` line (permission bits first).
func isListingPaste(cmd string) bool {
	return listingPaste.MatchString(cmd)
}

// isEscapeArtifact matches leftovers of arrow keys and other escape input.
func isEscapeArtifact(cmd string) bool {
	return escapeArtifact.MatchString(cmd)
}

// isDirty reports whether typed input carries cursor-key residue, which
// makes the locally accumulated text unreliable.
func isDirty(cmd string) bool {
	return dirtyInput.MatchString(cmd)
}
