package mockssh

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptShell returns a ShellHandler that mimics a line-oriented shell. It
// writes prompt, echoes typed bytes, and on carriage return writes the output
// produced by run for the line, followed by the prompt again. run returns the
// new prompt to use as its second value, or "" to keep the current one. The
// line "exit" ends the shell.
func PromptShell(prompt string, run func(line string) (output, nextPrompt string)) ShellHandler {
	return func(ch io.ReadWriter, _ WindowSize, _ <-chan WindowSize) int {
		current := prompt
		io.WriteString(ch, current)

		r := bufio.NewReader(ch)
		var line strings.Builder
		for {
			b, err := r.ReadByte()
			if err != nil {
				return 0
			}
			switch b {
			case '\r', '\n':
				cmd := line.String()
				line.Reset()
				io.WriteString(ch, "\r\n")
				if cmd == "exit" {
					return 0
				}
				out, next := run(cmd)
				if out != "" {
					io.WriteString(ch, out)
				}
				if next != "" {
					current = next
				}
				io.WriteString(ch, current)
			case 0x7f, 0x08:
				if s := line.String(); s != "" {
					line.Reset()
					line.WriteString(s[:len(s)-1])
					io.WriteString(ch, "\b \b")
				}
			default:
				line.WriteByte(b)
				ch.Write([]byte{b})
			}
		}
	}
}

// EchoRun is a run function for PromptShell that reports the command back.
func EchoRun(line string) (string, string) {
	if line == "" {
		return "", ""
	}
	return fmt.Sprintf("ran: %s\r\n", line), ""
}
