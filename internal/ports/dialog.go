package ports

// ProfileFormData holds the result of a connection profile form.
type ProfileFormData struct {
	Name      string
	Host      string
	Port      int
	Username  string
	AuthType  string // "password" or "agent"
	JumpName  string // name of an existing jump profile, optional
	IsJump    bool
	Confirmed bool
}

// DialogProvider abstracts interactive user dialogs.
// Implementations may use TUI forms or test fakes.
type DialogProvider interface {
	// ProfileForm shows a form to confirm/edit a connection profile.
	// Returns the final form data with Confirmed=true if the user accepted.
	ProfileForm(prefill ProfileFormData, jumpChoices []string) (ProfileFormData, error)
}
