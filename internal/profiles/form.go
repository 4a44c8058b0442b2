package profiles

import (
	"fmt"

	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/ssh"
)

// Auth types offered by the profile form.
const (
	AuthPassword = "password"
	AuthAgent    = "agent"
)

// Prefill turns a profile into form data.
func Prefill(cfg ssh.ConnectionConfig) ports.ProfileFormData {
	data := ports.ProfileFormData{
		Name:     cfg.Name,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		AuthType: AuthPassword,
		IsJump:   cfg.IsJump,
	}
	if cfg.UseAgent {
		data.AuthType = AuthAgent
	}
	if cfg.JumpConfig != nil {
		data.JumpName = cfg.JumpConfig.Name
	}
	return data
}

// FromForm builds a profile from confirmed form data, embedding the named
// jump profile. Passwords are never collected by the form; they are asked
// for when connecting.
func (s *Store) FromForm(data ports.ProfileFormData) (ssh.ConnectionConfig, error) {
	cfg := ssh.ConnectionConfig{
		Name:     data.Name,
		Host:     data.Host,
		Port:     data.Port,
		Username: data.Username,
		UseAgent: data.AuthType == AuthAgent,
		IsJump:   data.IsJump,
	}
	if cfg.Port == 0 {
		cfg.Port = ssh.DefaultPort
	}
	if data.JumpName != "" {
		jump, err := s.Find(data.JumpName)
		if err != nil {
			return ssh.ConnectionConfig{}, fmt.Errorf("jump host: %w", err)
		}
		jump.JumpConfig = nil
		jump.Password = ""
		cfg.JumpConfig = &jump
	}
	if err := cfg.Validate(); err != nil {
		return ssh.ConnectionConfig{}, err
	}
	return cfg, nil
}

// AddInteractive shows the profile form and saves the result. It reports
// false when the operator declined to save.
func (s *Store) AddInteractive(dialog ports.DialogProvider, prefill ports.ProfileFormData) (ssh.ConnectionConfig, bool, error) {
	result, err := dialog.ProfileForm(prefill, s.JumpHosts())
	if err != nil {
		return ssh.ConnectionConfig{}, false, fmt.Errorf("profile form: %w", err)
	}
	if !result.Confirmed {
		return ssh.ConnectionConfig{}, false, nil
	}
	cfg, err := s.FromForm(result)
	if err != nil {
		return ssh.ConnectionConfig{}, false, err
	}
	saved, err := s.Add(cfg)
	if err != nil {
		return ssh.ConnectionConfig{}, false, err
	}
	return saved, true, nil
}
