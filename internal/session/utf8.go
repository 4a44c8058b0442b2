package session

import "unicode/utf8"

// splitUTF8 splits b before a trailing incomplete UTF-8 sequence so a rune
// cut across two reads is forwarded whole. Invalid bytes are not held back.
func splitUTF8(b []byte) (complete, rest []byte) {
	// A rune is at most utf8.UTFMax bytes; look back no further.
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return b, nil
		}
		return b[:i], b[i:]
	}
	return b, nil
}
