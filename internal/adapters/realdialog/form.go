// Package realdialog provides a TUI-based DialogProvider using charmbracelet/huh.
//
// When stdin is not a terminal (piped input, CI), the provider falls back to
// plain line prompts so profiles can still be scripted.
package realdialog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/charmbracelet/huh"
)

// noJump is the select value meaning "connect directly".
const noJump = ""

// Provider implements ports.DialogProvider on the current terminal.
type Provider struct {
	in  io.Reader
	out io.Writer
}

// New returns a new TUI dialog provider bound to stdin/stdout.
func New() *Provider {
	return &Provider{in: os.Stdin, out: os.Stdout}
}

// ProfileForm shows the connection profile form.
func (p *Provider) ProfileForm(prefill ports.ProfileFormData, jumpChoices []string) (ports.ProfileFormData, error) {
	if f, ok := p.in.(*os.File); ok && isTerminal(f) {
		return runForm(prefill, jumpChoices)
	}
	return runPlain(bufio.NewScanner(p.in), p.out, prefill), nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func runForm(prefill ports.ProfileFormData, jumpChoices []string) (ports.ProfileFormData, error) {
	result := prefill
	portStr := strconv.Itoa(prefill.Port)
	if portStr == "0" {
		portStr = "22"
	}
	if result.AuthType == "" {
		result.AuthType = "password"
	}

	jumpOptions := []huh.Option[string]{huh.NewOption("None (direct)", noJump)}
	for _, name := range jumpChoices {
		jumpOptions = append(jumpOptions, huh.NewOption(name, name))
	}

	var confirmed bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Connection Name").
				Description("Friendly name shown on the tab (e.g., 'prod-db')").
				Value(&result.Name),

			huh.NewInput().
				Title("Host").
				Description("SSH hostname or IP address").
				Value(&result.Host),

			huh.NewInput().
				Title("Port").
				Description("SSH port").
				Value(&portStr),

			huh.NewInput().
				Title("Username").
				Description("SSH username").
				Value(&result.Username),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Auth Type").
				Options(
					huh.NewOption("Password (asked when connecting)", "password"),
					huh.NewOption("SSH agent with forwarding", "agent"),
				).
				Value(&result.AuthType),

			huh.NewSelect[string]().
				Title("Jump Host").
				Options(jumpOptions...).
				Value(&result.JumpName),

			huh.NewConfirm().
				Title("Use this profile as a jump host?").
				Value(&result.IsJump),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this connection profile?").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		return prefill, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 22
	}
	result.Port = port
	result.Confirmed = confirmed

	return result, nil
}

func runPlain(scanner *bufio.Scanner, out io.Writer, prefill ports.ProfileFormData) ports.ProfileFormData {
	ask := func(label, def string) string {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
		return prompt(scanner, def)
	}

	result := prefill
	result.Name = ask("Name", prefill.Name)
	result.Host = ask("Host", prefill.Host)
	port, err := strconv.Atoi(ask("Port", strconv.Itoa(max(prefill.Port, 22))))
	if err != nil {
		port = 22
	}
	result.Port = port
	result.Username = ask("Username", prefill.Username)
	result.AuthType = ask("Auth (password|agent)", firstNonEmpty(prefill.AuthType, "password"))
	result.JumpName = ask("Jump profile", prefill.JumpName)
	result.IsJump = strings.EqualFold(ask("Is jump host (y/n)", "n"), "y")
	result.Confirmed = strings.EqualFold(ask("Save (y/n)", "y"), "y")
	return result
}

// prompt reads one line, returning def when the line is blank or input ended.
func prompt(scanner *bufio.Scanner, def string) string {
	if !scanner.Scan() {
		return def
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return def
	}
	return line
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ ports.DialogProvider = (*Provider)(nil)
