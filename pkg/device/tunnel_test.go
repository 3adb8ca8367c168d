package device

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// ============================================================================
// In-process SSH server
// ============================================================================

// startSSHServer runs an SSH server on loopback that accepts admin/secret.
// An exec of "hang" never completes; any other command echoes itself.
func startSSHServer(t *testing.T) (host string, port int) {
	t.Helper()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatal(err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "admin" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %s", c.User())
		},
	}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSH(conn, config)
		}
	}()

	return splitAddr(t, ln.Addr().String())
}

func serveSSH(conn net.Conn, config *ssh.ServerConfig) {
	sc, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	defer sc.Close()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			nc.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, requests, err := nc.Accept()
		if err != nil {
			continue
		}
		go serveSession(ch, requests)
	}
}

func serveSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()
	for req := range requests {
		if req.Type != "exec" {
			req.Reply(false, nil)
			continue
		}
		var exec struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &exec); err != nil {
			req.Reply(false, nil)
			return
		}
		req.Reply(true, nil)
		if exec.Command == "hang" {
			continue
		}
		io.WriteString(ch, "ran: "+exec.Command)
		ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
		return
	}
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		t.Fatal(err)
	}
	return host, port
}

// ============================================================================
// SSHTunnel Tests
// ============================================================================

func TestSSHTunnel_ExecCommand(t *testing.T) {
	host, port := startSSHServer(t)

	tun, err := NewSSHTunnel(context.Background(), host, "admin", "secret", port, 5*time.Second)
	if err != nil {
		t.Fatalf("NewSSHTunnel() error: %v", err)
	}
	defer tun.Close()

	out, err := tun.ExecCommand(context.Background(), "show version")
	if err != nil {
		t.Fatalf("ExecCommand() error: %v", err)
	}
	if out != "ran: show version" {
		t.Errorf("ExecCommand() = %q, want %q", out, "ran: show version")
	}
	if !strings.HasPrefix(tun.LocalAddr(), "127.0.0.1:") {
		t.Errorf("LocalAddr() = %q, want loopback", tun.LocalAddr())
	}
}

func TestSSHTunnel_ExecCommandCancelled(t *testing.T) {
	host, port := startSSHServer(t)

	tun, err := NewSSHTunnel(context.Background(), host, "admin", "secret", port, 5*time.Second)
	if err != nil {
		t.Fatalf("NewSSHTunnel() error: %v", err)
	}
	defer tun.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = tun.ExecCommand(ctx, "hang")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ExecCommand(hang) = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("ExecCommand returned after %v, should return on cancellation", elapsed)
	}

	// The connection stays usable for later commands.
	out, err := tun.ExecCommand(context.Background(), "echo ok")
	if err != nil || out != "ran: echo ok" {
		t.Errorf("ExecCommand after cancel = %q, %v", out, err)
	}
}

func TestNewSSHTunnel_WrongPassword(t *testing.T) {
	host, port := startSSHServer(t)

	_, err := NewSSHTunnel(context.Background(), host, "admin", "wrong", port, 5*time.Second)
	if err == nil || !strings.Contains(err.Error(), "SSH handshake admin@") {
		t.Errorf("NewSSHTunnel() = %v, want handshake error", err)
	}
}

func TestNewSSHTunnel_HandshakeTimeout(t *testing.T) {
	// Accepts TCP but never speaks SSH.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	conns := make(chan net.Conn, 1)
	go func() {
		if c, err := ln.Accept(); err == nil {
			conns <- c
		}
	}()
	defer func() {
		select {
		case c := <-conns:
			c.Close()
		default:
		}
	}()

	host, port := splitAddr(t, ln.Addr().String())

	start := time.Now()
	_, err = NewSSHTunnel(context.Background(), host, "admin", "secret", port, 200*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "SSH handshake") {
		t.Fatalf("NewSSHTunnel() = %v, want handshake error", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("handshake took %v, should be bounded by the timeout", elapsed)
	}
}

func TestNewSSHTunnel_DialFailures(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	host, port := splitAddr(t, ln.Addr().String())
	ln.Close()

	t.Run("closed listener", func(t *testing.T) {
		_, err := NewSSHTunnel(context.Background(), host, "admin", "secret", port, time.Second)
		if err == nil || !strings.Contains(err.Error(), "SSH dial admin@") {
			t.Errorf("NewSSHTunnel() = %v, want dial error", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewSSHTunnel(ctx, host, "admin", "secret", port, time.Second)
		if err == nil || !strings.Contains(err.Error(), "SSH dial") {
			t.Errorf("NewSSHTunnel() = %v, want dial error", err)
		}
	})
}
