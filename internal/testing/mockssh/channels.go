package mockssh

import (
	"io"
	"net"
	"strconv"

	"golang.org/x/crypto/ssh"
)

// serveSession answers pty, agent, env, shell and window-change requests.
// Window changes are passed to the running shell.
func (s *Server) serveSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer s.wg.Done()
	defer ch.Close()

	var (
		size    *WindowSize
		started bool
		resizes = make(chan WindowSize, 16)
	)
	defer close(resizes)

	for req := range requests {
		ok := true
		switch req.Type {
		case "pty-req":
			var p struct {
				Term          string
				Cols, Rows    uint32
				Width, Height uint32
				Modes         string
			}
			ws := WindowSize{Rows: 24, Cols: 80}
			if ssh.Unmarshal(req.Payload, &p) == nil {
				ws = WindowSize{Rows: p.Rows, Cols: p.Cols}
			}
			size = &ws
			s.record(func(st *Stats) { st.PtyRequests = append(st.PtyRequests, ws) })

		case "auth-agent-req@openssh.com":
			s.record(func(st *Stats) { st.AgentRequests++ })

		case "env":

		case "shell":
			if started || size == nil {
				ok = false
				break
			}
			started = true
			s.wg.Add(1)
			go s.runShell(ch, *size, resizes)

		case "window-change":
			var p struct {
				Cols, Rows    uint32
				Width, Height uint32
			}
			if ssh.Unmarshal(req.Payload, &p) != nil {
				ok = false
				break
			}
			ws := WindowSize{Rows: p.Rows, Cols: p.Cols}
			s.record(func(st *Stats) { st.WindowChanges = append(st.WindowChanges, ws) })
			select {
			case resizes <- ws:
			default:
			}

		default:
			ok = false
		}
		if req.WantReply {
			req.Reply(ok, nil)
		}
	}
}

func (s *Server) runShell(ch ssh.Channel, size WindowSize, resizes <-chan WindowSize) {
	defer s.wg.Done()
	code := s.shell(ch, size, resizes)
	ch.CloseWrite()
	ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(code)}))
	ch.Close()
}

// serveForward splices a direct-tcpip channel (RFC 4254 section 7.2) to a
// fresh TCP connection.
func (s *Server) serveForward(nc ssh.NewChannel) {
	defer s.wg.Done()

	var p struct {
		Host       string
		Port       uint32
		OriginHost string
		OriginPort uint32
	}
	if err := ssh.Unmarshal(nc.ExtraData(), &p); err != nil {
		nc.Reject(ssh.ConnectionFailed, "malformed direct-tcpip payload")
		return
	}

	target := net.JoinHostPort(p.Host, strconv.Itoa(int(p.Port)))
	upstream, err := net.Dial("tcp", target)
	if err != nil {
		nc.Reject(ssh.ConnectionFailed, err.Error())
		return
	}
	s.track(upstream)
	defer s.untrack(upstream)
	s.record(func(st *Stats) { st.Forwards = append(st.Forwards, target) })

	ch, reqs, err := nc.Accept()
	if err != nil {
		upstream.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(ch, upstream)
		ch.CloseWrite()
		done <- struct{}{}
	}()
	go func() {
		io.Copy(upstream, ch)
		done <- struct{}{}
	}()
	<-done
	ch.Close()
	upstream.Close()
	<-done
}
