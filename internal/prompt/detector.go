package prompt

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Detector reports whether terminal output asks the operator for a secret.
// Configured patterns are consulted before the built-in ones.
type Detector struct {
	mu      sync.RWMutex
	custom  []Pattern
	builtin []Pattern
}

// NewDetector returns a detector holding DefaultPatterns.
func NewDetector() *Detector {
	return &Detector{builtin: DefaultPatterns()}
}

// Add appends a custom pattern.
func (d *Detector) Add(p Pattern) {
	d.mu.Lock()
	d.custom = append(d.custom, p)
	d.mu.Unlock()
}

// AddPatternFromConfig compiles regex and adds it. The kinds password,
// passphrase and otp all mark secret input; anything else is informational.
func (d *Detector) AddPatternFromConfig(name, regex, kind string) error {
	re, err := regexp.Compile(regex)
	if err != nil {
		return fmt.Errorf("compile %q: %w", regex, err)
	}
	pt := PromptTypeText
	switch strings.ToLower(kind) {
	case "password", "passphrase", "otp":
		pt = PromptTypePassword
	}
	d.Add(Pattern{Name: name, Regex: re, Type: pt})
	return nil
}

// CredentialPrompt returns the first password-type pattern found anywhere in
// buffer. Custom patterns are tried before the built-in markers.
func (d *Detector) CredentialPrompt(buffer string) (Pattern, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, p := range d.ordered() {
		if p.Type == PromptTypePassword && p.Regex.MatchString(buffer) {
			return p, true
		}
	}
	return Pattern{}, false
}

// HasCredentialPrompt reports whether a password-type pattern occurs in
// buffer.
func (d *Detector) HasCredentialPrompt(buffer string) bool {
	_, ok := d.CredentialPrompt(buffer)
	return ok
}

// ordered must be called with mu held.
func (d *Detector) ordered() []Pattern {
	all := make([]Pattern, 0, len(d.custom)+len(d.builtin))
	return append(append(all, d.custom...), d.builtin...)
}
