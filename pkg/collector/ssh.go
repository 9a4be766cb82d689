package collector

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"driftwatch/pkg/model"
)

// Kind classifies session-level collection failures.
type Kind int

const (
	KindAuth Kind = iota
	KindUnreachable
	KindTimeout
	KindInternal
)

// CollectError is a session-level failure that aborts the whole scan.
type CollectError struct {
	Kind   Kind
	Detail model.FailureDetail
}

func (e *CollectError) Error() string {
	return e.Detail.Error
}

// AsFailure extracts the FailureDetail from a collection error. Unknown
// error types map to an internal failure.
func AsFailure(err error) model.FailureDetail {
	var ce *CollectError
	if errors.As(err, &ce) {
		return ce.Detail
	}
	return model.FailureDetail{Error: err.Error()}
}

func authError(msg string, cause error) *CollectError {
	detail := msg
	if cause != nil {
		detail = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &CollectError{Kind: KindAuth, Detail: model.FailureDetail{Error: detail}}
}

// session wraps an established SSH client; one remote command per run call.
type session struct {
	client   *ssh.Client
	password string

	mu     sync.Mutex
	stderr bytes.Buffer
	stdout bytes.Buffer
	closed bool
}

// dial establishes the SSH session, classifying failures as auth,
// unreachable or timeout. The client is torn down when ctx ends so a
// deadline cancels in-flight remote commands best-effort.
func (c *Collector) dial(ctx context.Context, host model.Host, password, key string) (*session, error) {
	cfg := &ssh.ClientConfig{
		User:            host.SSHUser,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.dialTimeout,
	}
	if key != "" {
		signer, err := ssh.ParsePrivateKey([]byte(key))
		if err != nil {
			return nil, authError("invalid private key", err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(password))
	}
	if len(cfg.Auth) == 0 {
		return nil, authError("host has no usable credential", nil)
	}

	addr := net.JoinHostPort(host.IPAddress, "22")
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &CollectError{Kind: KindTimeout, Detail: model.FailureDetail{Error: "scan deadline exceeded while connecting"}}
		}
		return nil, &CollectError{Kind: KindUnreachable, Detail: model.FailureDetail{
			Error: fmt.Sprintf("host unreachable: %v", err),
		}}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") || strings.Contains(err.Error(), "no supported methods") {
			return nil, authError("ssh authentication failed", err)
		}
		return nil, &CollectError{Kind: KindUnreachable, Detail: model.FailureDetail{
			Error: fmt.Sprintf("ssh handshake failed: %v", err),
		}}
	}

	s := &session{client: ssh.NewClient(sshConn, chans, reqs), password: password}
	go func() {
		<-ctx.Done()
		s.close()
	}()
	return s, nil
}

// run executes one remote command and returns its stdout. All output is
// also accumulated for diagnostics should the scan fail later.
func (s *session) run(cmd string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", errors.Wrap(err, "open session")
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	err = sess.Run(cmd)

	s.mu.Lock()
	s.stdout.Write(stdout.Bytes())
	s.stderr.Write(stderr.Bytes())
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	return stdout.String(), nil
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		_ = s.client.Close()
	}
}

// captured returns everything the remote side wrote so far, with the host
// password scrubbed.
func (s *session) captured() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sanitize(s.stdout.String(), s.password), sanitize(s.stderr.String(), s.password)
}

// sanitize scrubs the credential from diagnostic output before it is
// persisted in a FailureDetail.
func sanitize(text, password string) string {
	if text == "" || password == "" {
		return text
	}
	return strings.ReplaceAll(text, password, "********")
}

func timeoutError(ctx context.Context, sess *session) *CollectError {
	stdout, stderr := sess.captured()
	msg := "scan timed out"
	if ctx.Err() == context.Canceled {
		msg = "scan canceled"
	}
	return &CollectError{Kind: KindTimeout, Detail: model.FailureDetail{
		Error:  msg,
		Stdout: stdout,
		Stderr: stderr,
	}}
}

// skipReason renders a probe failure into a category skip reason.
func skipReason(err error) string {
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		switch exitErr.ExitStatus() {
		case 127:
			return "command not found"
		case 126:
			return "permission denied"
		default:
			return fmt.Sprintf("command failed with exit status %d", exitErr.ExitStatus())
		}
	}
	return fmt.Sprintf("probe failed: %v", err)
}
