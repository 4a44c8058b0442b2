// Package prompt recognises shell prompts and credential prompts in raw
// terminal output.
package prompt

import "regexp"

// PromptType indicates the type of prompt detected.
type PromptType string

const (
	// PromptTypePassword marks output that asks the operator for a secret.
	PromptTypePassword PromptType = "password"
	// PromptTypeText is any other custom pattern.
	PromptTypeText PromptType = "text"
)

// Pattern represents a prompt detection pattern.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
	Type  PromptType
}

// DefaultPatterns returns the built-in credential markers. They match
// anywhere in the buffer, case-insensitively.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:  "password",
			Regex: regexp.MustCompile(`(?i)password`),
			Type:  PromptTypePassword,
		},
		{
			Name:  "passphrase",
			Regex: regexp.MustCompile(`(?i)passphrase`),
			Type:  PromptTypePassword,
		},
		{
			Name:  "password_fr",
			Regex: regexp.MustCompile(`(?i)mot de passe`),
			Type:  PromptTypePassword,
		},
	}
}
