package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh/knownhosts"
)

func TestWrapConnectError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint string
	}{
		{
			name:     "connection refused",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")},
			wantHint: "SSH daemon",
		},
		{
			name:     "auth failure",
			err:      fmt.Errorf("ssh: unable to authenticate"),
			wantHint: "ssh-copy-id",
		},
		{
			name:     "known_hosts missing",
			err:      fmt.Errorf("no known_hosts file found at /home/user/.ssh/known_hosts"),
			wantHint: "network.insecure",
		},
		{
			name:     "timeout",
			err:      fmt.Errorf("dial 10.0.0.1:22: %w", context.DeadlineExceeded),
			wantHint: "connect timeout",
		},
		{
			name:     "unknown host key",
			err:      &knownhosts.KeyError{},
			wantHint: "connect once",
		},
		{
			name:     "changed host key",
			err:      &knownhosts.KeyError{Want: []knownhosts.KnownKey{{Filename: "known_hosts", Line: 3}}},
			wantHint: "ssh-keygen -R",
		},
		{
			name:     "no route",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connect: no route to host")},
			wantHint: "switched off",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapConnectError("10.0.0.1", tt.err)
			ce, ok := wrapped.(*ConnectError)
			if !ok {
				t.Fatalf("expected *ConnectError, got %T", wrapped)
			}
			if !strings.Contains(ce.Hint, tt.wantHint) {
				t.Errorf("hint = %q, want mention of %q", ce.Hint, tt.wantHint)
			}
			if ce.Unwrap() != tt.err {
				t.Error("Unwrap should return the original error")
			}
			if !strings.Contains(ce.Error(), "10.0.0.1") {
				t.Errorf("Error() = %q, want host", ce.Error())
			}
		})
	}
}

func TestWrapConnectError_Nil(t *testing.T) {
	if err := WrapConnectError("host", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestWrapConnectError_Unknown(t *testing.T) {
	err := fmt.Errorf("some random error")
	wrapped := WrapConnectError("host", err)
	if _, ok := wrapped.(*ConnectError); ok {
		t.Error("expected unwrapped error for unknown error type")
	}
}

func TestConnectErrorReasonIsDeviceIndependent(t *testing.T) {
	a := WrapConnectError("192.168.2.101", errors.New("dial tcp 192.168.2.101:32400: connect: connection refused"))
	b := WrapConnectError("192.168.2.102", errors.New("dial tcp 192.168.2.102:32400: connect: connection refused"))

	var ca, cb *ConnectError
	if !errors.As(a, &ca) || !errors.As(b, &cb) {
		t.Fatalf("errors not wrapped: %v, %v", a, b)
	}
	if ca.Reason() != cb.Reason() {
		t.Errorf("reasons differ: %q vs %q", ca.Reason(), cb.Reason())
	}
}
