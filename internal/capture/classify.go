package capture

import (
	"github.com/acolita/hydra-sh/internal/docker"
	"github.com/acolita/hydra-sh/internal/prompt"
)

// Classify decides how cmd ran from the prompt line that followed its output
// and the hostname of the session's first prompt. A prompt naming a different
// host means a nested sub-shell; otherwise docker/podman flags decide.
func Classify(trailingPrompt, initialHostname, cmd string) ExecutionType {
	if host := prompt.Hostname(trailingPrompt); host != "" && initialHostname != "" && host != initialHostname {
		return ExecDockerInteractive
	}
	if docker.HasInteractiveTTY(cmd) {
		return ExecDockerInteractive
	}
	if docker.IsContainerCommand(cmd) {
		return ExecDocker
	}
	return ExecBash
}
