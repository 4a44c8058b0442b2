// Package fakedialog provides a test fake for ports.DialogProvider.
package fakedialog

import "github.com/acolita/hydra-sh/internal/ports"

// Provider is a controllable fake DialogProvider for testing.
type Provider struct {
	// Result is the form data returned by ProfileForm.
	Result ports.ProfileFormData
	// Err is the error returned by ProfileForm.
	Err error
	// Called tracks whether ProfileForm was invoked.
	Called bool
	// ReceivedPrefill captures the prefill data passed to ProfileForm.
	ReceivedPrefill ports.ProfileFormData
	// ReceivedJumps captures the jump host choices offered.
	ReceivedJumps []string
}

// New returns a new fake dialog provider.
func New() *Provider {
	return &Provider{}
}

// ProfileForm returns the pre-configured Result and Err.
func (p *Provider) ProfileForm(prefill ports.ProfileFormData, jumpChoices []string) (ports.ProfileFormData, error) {
	p.Called = true
	p.ReceivedPrefill = prefill
	p.ReceivedJumps = jumpChoices
	if p.Err != nil {
		return prefill, p.Err
	}
	return p.Result, nil
}

var _ ports.DialogProvider = (*Provider)(nil)
