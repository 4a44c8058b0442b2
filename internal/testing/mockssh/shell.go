package mockssh

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// ShellHandler serves one interactive shell and returns its exit status.
// resizes carries window-change requests and is closed with the session.
type ShellHandler func(ch io.ReadWriter, size WindowSize, resizes <-chan WindowSize) int

// PtyShell runs program on a pseudo-terminal sized to the client's request.
func PtyShell(program string) ShellHandler {
	return func(ch io.ReadWriter, size WindowSize, resizes <-chan WindowSize) int {
		cmd := exec.Command(program)
		cmd.Env = append(os.Environ(), "PS1=test@mock:~$ ")

		ptmx, err := pty.StartWithSize(cmd, winsize(size))
		if err != nil {
			slog.Debug("mockssh pty start", slog.String("error", err.Error()))
			return 1
		}
		defer ptmx.Close()

		go func() {
			for ws := range resizes {
				pty.Setsize(ptmx, winsize(ws))
			}
		}()

		output := make(chan struct{})
		go func() {
			io.Copy(ch, ptmx)
			close(output)
		}()
		go func() {
			// The client going away ends the program.
			io.Copy(ptmx, ch)
			if cmd.Process != nil {
				cmd.Process.Kill()
			}
		}()

		code := 0
		if err := cmd.Wait(); err != nil {
			code = 1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
				code = exitErr.ExitCode()
			}
		}
		ptmx.Close()
		<-output
		return code
	}
}

func winsize(ws WindowSize) *pty.Winsize {
	return &pty.Winsize{Rows: uint16(ws.Rows), Cols: uint16(ws.Cols)}
}
