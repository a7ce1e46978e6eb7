package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ConnectError wraps an SSH connection error with a user-friendly hint.
type ConnectError struct {
	Host string
	Err  error
	Hint string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s: %v\n  hint: %s", e.Host, e.Err, e.Hint)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Reason is the hint, which does not depend on the device.
func (e *ConnectError) Reason() string {
	return e.Hint
}

// WrapConnectError wraps an SSH connection error with a friendly hint.
// If the error doesn't match any known patterns, it's returned as-is.
func WrapConnectError(host string, err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	hint := func(h string) error {
		return &ConnectError{Host: host, Err: err, Hint: h}
	}

	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		if len(keyErr.Want) > 0 {
			return hint("the device's host key changed; remove the old key with ssh-keygen -R")
		}
		return hint("the device is not in known_hosts; connect to it once with ssh")
	}

	var authErr *ssh.ServerAuthError
	switch {
	case errors.As(err, &authErr),
		strings.Contains(msg, "unable to authenticate"),
		strings.Contains(msg, "no supported methods remain"):
		return hint("the student account does not accept your key; install it with ssh-copy-id")

	case strings.Contains(msg, "no known_hosts"):
		return hint("set network.insecure or connect to the device once with ssh")

	case errors.Is(err, context.DeadlineExceeded):
		return hint("the device did not answer within the connect timeout")

	case strings.Contains(msg, "connection refused"):
		return hint("verify the SSH daemon is running on the device and the configured remote_port is correct")
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && strings.Contains(msg, "no route to host") {
		return hint("the device is switched off or on another network")
	}

	return err
}
