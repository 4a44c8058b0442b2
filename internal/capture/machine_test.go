package capture

import (
	"testing"
	"time"

	"github.com/acolita/hydra-sh/internal/testing/fakes/fakeclock"
)

var epoch = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

const hostPrompt = "user@web:~$ "

func newMachine() (*Machine, *fakeclock.Clock) {
	clock := fakeclock.New(epoch)
	m := NewMachine(clock, nil)
	m.Output("Welcome\r\n" + hostPrompt)
	return m, clock
}

// run types cmd, emits output after d and finalizes.
func run(m *Machine, clock *fakeclock.Clock, cmd, output string, d time.Duration) (Record, bool) {
	m.Input(cmd+"\r", "")
	clock.Advance(d)
	m.Output(output)
	return m.Finalize()
}

// ---------------------------------------------------------------------------
// Prompt capture
// ---------------------------------------------------------------------------

func TestPromptCapture(t *testing.T) {
	m, _ := newMachine()

	if m.ShellPrompt() != "user@web:~$" {
		t.Errorf("ShellPrompt() = %q, want %q", m.ShellPrompt(), "user@web:~$")
	}
	if m.InitialHostname() != "web" {
		t.Errorf("InitialHostname() = %q, want web", m.InitialHostname())
	}

	m.Output("\r\nroot@other:/# ")
	if m.ShellPrompt() != "user@web:~$" || m.InitialHostname() != "web" {
		t.Error("prompt or initial hostname overwritten")
	}
}

func TestPromptCaptureSkipsNonPromptChunks(t *testing.T) {
	m := NewMachine(fakeclock.New(epoch), nil)

	m.Output("   \r\n")
	m.Output("Last login: Mon Mar 10\r\n")
	if m.ShellPrompt() != "" {
		t.Fatalf("ShellPrompt() = %q, want empty", m.ShellPrompt())
	}

	m.Output("\x1b[01;32mops@db\x1b[00m:~$ ")
	if m.InitialHostname() != "db" {
		t.Errorf("InitialHostname() = %q, want db", m.InitialHostname())
	}
}

// ---------------------------------------------------------------------------
// Input accumulation
// ---------------------------------------------------------------------------

func TestInputStartsRecording(t *testing.T) {
	m, _ := newMachine()

	if m.Input("ls -la", "") {
		t.Error("Input() without CR started a capture")
	}
	if m.State() != StateIdle {
		t.Fatalf("State() = %v, want IDLE", m.State())
	}
	if !m.Input("\r", "") {
		t.Error("Input(CR) did not start a capture")
	}
	if m.State() != StateRecording {
		t.Errorf("State() = %v, want RECORDING", m.State())
	}
}

func TestInputBlankDoesNotRecord(t *testing.T) {
	m, _ := newMachine()

	if m.Input("   \r", "") {
		t.Error("blank command started a capture")
	}
	if m.State() != StateIdle {
		t.Errorf("State() = %v, want IDLE", m.State())
	}
}

func TestInputBackspaceAndKill(t *testing.T) {
	m, clock := newMachine()

	m.Input("lss\x7f -l\x7fa", "")
	rec, ok := run(m, clock, "", "\r\nout\r\n"+hostPrompt, time.Millisecond)
	if !ok || rec.Cmd != "ls -a" {
		t.Fatalf("Finalize() = %+v, %v; want cmd %q", rec, ok, "ls -a")
	}

	m.Input("rm -rf /\x03", "")
	if m.Input("\r", "") {
		t.Error("Ctrl-C did not clear the line")
	}
	m.Input("garbage\x15pwd", "")
	rec, ok = run(m, clock, "", "\r\n/home\r\n"+hostPrompt, time.Millisecond)
	if !ok || rec.Cmd != "pwd" {
		t.Errorf("Finalize() = %+v, %v; want cmd pwd", rec, ok)
	}
}

func TestInputMultibyte(t *testing.T) {
	m, clock := newMachine()

	rec, ok := run(m, clock, "echo héllo wörld", "\r\nhéllo wörld\r\n"+hostPrompt, time.Millisecond)
	if !ok || rec.Cmd != "echo héllo wörld" {
		t.Errorf("Finalize() = %+v, %v", rec, ok)
	}

	m.Input("ééé\x7f\r", "")
	m.Output("x\r\n" + hostPrompt)
	rec, _ = m.Finalize()
	if rec.Cmd != "éé" {
		t.Errorf("Cmd = %q, want %q", rec.Cmd, "éé")
	}
}

func TestInputIgnoredWhileRecording(t *testing.T) {
	m, _ := newMachine()

	m.Input("cat\r", "")
	m.Output("cat\r\n")
	// Typed lines go to cat, not to the next command.
	if m.Input("hello\r", "") {
		t.Error("CR while recording restarted the capture")
	}
	m.Output("hello\r\nhello\r\n")
	m.Input("\x04", "")
	m.Output(hostPrompt)

	rec, ok := m.Finalize()
	if !ok || rec.Cmd != "cat" {
		t.Errorf("Finalize() = %+v, %v; want cmd cat", rec, ok)
	}
	if m.Input("\r", "") {
		t.Error("text typed while recording leaked into the next command")
	}
}

func TestLineHint(t *testing.T) {
	tests := []struct {
		name  string
		typed string
		hint  string
		want  string
		ok    bool
	}{
		{"arrow key recall", "\x1b[A", "user@web:~$ git status", "git status", true},
		{"blank typed", "", "user@web:~$ make", "make", true},
		{"hint is bare prompt", "", "user@web:~$", "", false},
		{"clean typed wins", "ls", "user@web:~$ something else", "ls", true},
		{"dirty without hint", "\x1b[A", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, clock := newMachine()
			m.Input(tt.typed, "")
			started := m.Input("\r", tt.hint)
			if !started {
				if tt.ok {
					t.Fatal("capture did not start")
				}
				return
			}
			clock.Advance(time.Millisecond)
			m.Output("\r\nout\r\n" + hostPrompt)
			rec, ok := m.Finalize()
			if ok != tt.ok || rec.Cmd != tt.want {
				t.Errorf("Finalize() = (%q, %v), want (%q, %v)", rec.Cmd, ok, tt.want, tt.ok)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Finalize
// ---------------------------------------------------------------------------

func TestFinalizeBasicCommand(t *testing.T) {
	m, clock := newMachine()

	rec, ok := run(m, clock, "ls -la", "ls -la\r\ntotal 0\r\n"+hostPrompt, 35*time.Millisecond)
	if !ok {
		t.Fatal("Finalize() discarded a normal command")
	}
	if rec.Cmd != "ls -la" {
		t.Errorf("Cmd = %q", rec.Cmd)
	}
	if rec.ExecutionType != ExecBash {
		t.Errorf("ExecutionType = %q, want bash", rec.ExecutionType)
	}
	if rec.Duration != 35*time.Millisecond {
		t.Errorf("Duration = %v, want 35ms", rec.Duration)
	}
	if rec.Output != "ls -la\ntotal 0" {
		t.Errorf("Output = %q", rec.Output)
	}
	if !rec.Timestamp.Equal(epoch.Add(35 * time.Millisecond)) {
		t.Errorf("Timestamp = %v", rec.Timestamp)
	}
	if m.State() != StateIdle {
		t.Errorf("State() after Finalize = %v, want IDLE", m.State())
	}
}

func TestFinalizeWithoutCapture(t *testing.T) {
	m, _ := newMachine()
	if _, ok := m.Finalize(); ok {
		t.Error("Finalize() while idle returned a record")
	}
}

func TestFinalizeNoOutputZeroDuration(t *testing.T) {
	m, clock := newMachine()
	m.Input("true\r", "")
	clock.Advance(time.Second)

	rec, ok := m.Finalize()
	if !ok {
		t.Fatal("Finalize() discarded command without output")
	}
	if rec.Duration != 0 {
		t.Errorf("Duration = %v, want 0", rec.Duration)
	}
}

func TestFinalizeDiscards(t *testing.T) {
	tests := []struct {
		name   string
		cmd    string
		output string
	}{
		{"password prompt", "sudo apt update", "[sudo] password for user: \r\n" + hostPrompt},
		{"passphrase prompt", "ssh-add", "Enter passphrase for /home/user/.ssh/id_ed25519: "},
		{"french prompt", "su -", "Mot de passe : "},
		{"listing paste", "-rw-r--r-- 1 user user 220 Jan 1 .bashrc", "bash: -rw-r--r--: command not found\r\n" + hostPrompt},
		{"escape artifact", "[A", "\r\n" + hostPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, clock := newMachine()
			m.Input(tt.cmd+"\r", "")
			clock.Advance(time.Millisecond)
			m.Output(tt.output)

			if rec, ok := m.Finalize(); ok {
				t.Errorf("Finalize() = %+v, want discard", rec)
			}
			if m.State() != StateIdle {
				t.Errorf("State() = %v, want IDLE", m.State())
			}
		})
	}
}

func TestFinalizeStripsOSC(t *testing.T) {
	m, clock := newMachine()

	rec, ok := run(m, clock, "cd /tmp", "\x1b]0;user@web: /tmp\x07line one\r\nline \x1b]2;x\x1b\\two\r\nuser@web:/tmp$ ", time.Millisecond)
	if !ok {
		t.Fatal("Finalize() discarded command")
	}
	if rec.Output != "line one\nline two" {
		t.Errorf("Output = %q, want %q", rec.Output, "line one\nline two")
	}
}

func TestFinalizeKeepsNonPromptLastLine(t *testing.T) {
	m, clock := newMachine()

	rec, _ := run(m, clock, "long-job", "step 1\r\nstep 2", time.Millisecond)
	if rec.Output != "step 1\nstep 2" {
		t.Errorf("Output = %q", rec.Output)
	}
}

func TestFinalizeColouredPromptTrimmed(t *testing.T) {
	clock := fakeclock.New(epoch)
	m := NewMachine(clock, nil)
	coloured := "\x1b[01;32muser@web\x1b[00m:\x1b[01;34m~\x1b[00m$ "
	m.Output(coloured)

	rec, _ := run(m, clock, "id", "\r\nuid=1000(user)\r\n"+coloured, time.Millisecond)
	if rec.Output != "uid=1000(user)" {
		t.Errorf("Output = %q", rec.Output)
	}
	if rec.ExecutionType != ExecBash {
		t.Errorf("ExecutionType = %q", rec.ExecutionType)
	}
}

// ---------------------------------------------------------------------------
// Sub-shell context
// ---------------------------------------------------------------------------

func TestContainerSubShell(t *testing.T) {
	m, clock := newMachine()
	const container = "root@3f2a9c1b7d4e:/# "

	rec, _ := run(m, clock, "docker run -it debian bash", "\r\n"+container, time.Millisecond)
	if rec.ExecutionType != ExecDockerInteractive {
		t.Fatalf("launch ExecutionType = %q, want dockerInteractive", rec.ExecutionType)
	}
	if m.Context() != ContextContainer {
		t.Fatalf("Context() = %v, want container", m.Context())
	}

	rec, _ = run(m, clock, "ls", "\r\nbin etc\r\n"+container, time.Millisecond)
	if rec.ExecutionType != ExecDockerInteractive {
		t.Errorf("inner ExecutionType = %q, want dockerInteractive", rec.ExecutionType)
	}

	// No recognizable prompt: still inside, no downgrade.
	rec, _ = run(m, clock, "cat /etc/os-release", "PRETTY_NAME=Debian", time.Millisecond)
	if rec.ExecutionType != ExecDockerInteractive {
		t.Errorf("promptless ExecutionType = %q, want dockerInteractive", rec.ExecutionType)
	}
	rec, _ = run(m, clock, "docker --version", "\r\nDocker 27\r\n"+container, time.Millisecond)
	if rec.ExecutionType != ExecDockerInteractive {
		t.Errorf("docker-in-docker ExecutionType = %q, want dockerInteractive", rec.ExecutionType)
	}

	rec, _ = run(m, clock, "exit", "\r\nexit\r\n"+hostPrompt, time.Millisecond)
	if rec.ExecutionType != ExecBash {
		t.Errorf("exit ExecutionType = %q, want bash", rec.ExecutionType)
	}
	if m.Context() != ContextHost {
		t.Errorf("Context() after exit = %v, want host", m.Context())
	}

	rec, _ = run(m, clock, "uptime", "\r\nup 3 days\r\n"+hostPrompt, time.Millisecond)
	if rec.ExecutionType != ExecBash {
		t.Errorf("after exit ExecutionType = %q, want bash", rec.ExecutionType)
	}
}

func TestInteractiveFlagsReturningToHost(t *testing.T) {
	m, clock := newMachine()

	rec, _ := run(m, clock, "docker run -it --rm alpine echo hi", "\r\nhi\r\n"+hostPrompt, time.Millisecond)
	if rec.ExecutionType != ExecDockerInteractive {
		t.Errorf("ExecutionType = %q, want dockerInteractive", rec.ExecutionType)
	}
	if m.Context() != ContextHost {
		t.Errorf("Context() = %v, want host after prompt returned", m.Context())
	}
}

func TestResetKeepsPrompt(t *testing.T) {
	m, _ := newMachine()
	m.Input("sleep 10\r", "")
	m.Reset()

	if m.State() != StateIdle {
		t.Errorf("State() = %v, want IDLE", m.State())
	}
	if m.ShellPrompt() == "" {
		t.Error("Reset() cleared the captured prompt")
	}
}

func TestSecretLineNeverCaptured(t *testing.T) {
	m, clock := newMachine()

	m.Input("sudo -i\r", "")
	m.Output("[sudo] password for user: ")
	if _, ok := m.Finalize(); ok {
		t.Fatal("credential capture kept")
	}

	if m.Input("hunter2\r", "") {
		t.Error("typed secret started a capture")
	}
	// Wrong password: the prompt comes back while idle.
	m.Output("\r\nSorry, try again.\r\n[sudo] password for user: ")
	if m.Input("hunter3\r", "") {
		t.Error("second secret started a capture")
	}

	m.Output("\r\nroot@web:~# ")
	rec, ok := run(m, clock, "whoami", "\r\nroot\r\nroot@web:~# ", time.Millisecond)
	if !ok || rec.Cmd != "whoami" {
		t.Errorf("Finalize() = %+v, %v; want whoami", rec, ok)
	}
}

func TestSecretTypedWhileRecordingDoesNotSwallowNextCommand(t *testing.T) {
	m, clock := newMachine()

	m.Input("sudo ls\r", "")
	m.Output("\r\n[sudo] password for user: ")
	m.Input("hunter2\r", "")
	m.Output("\r\nfile.txt\r\n" + hostPrompt)
	if _, ok := m.Finalize(); ok {
		t.Fatal("credential capture kept")
	}

	if !m.Input("uptime\r", "") {
		t.Fatal("uptime did not start a capture")
	}
	if m.State() != StateRecording {
		t.Fatalf("State() = %v, want RECORDING", m.State())
	}
	clock.Advance(time.Millisecond)
	m.Output("\r\n up 3 days\r\n" + hostPrompt)
	rec, ok := m.Finalize()
	if !ok || rec.Cmd != "uptime" {
		t.Errorf("Finalize() = %+v, %v; want uptime", rec, ok)
	}
}

func TestSecretPromptAbortedWithCtrlC(t *testing.T) {
	m, clock := newMachine()

	m.Output("Enter passphrase for key: ")
	m.Input("\x03", "")
	m.Output("\r\n" + hostPrompt)

	rec, ok := run(m, clock, "ls", "\r\na b\r\n"+hostPrompt, time.Millisecond)
	if !ok || rec.Cmd != "ls" {
		t.Errorf("Finalize() = %+v, %v; want ls", rec, ok)
	}
}
