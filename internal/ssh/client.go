// Package ssh dials authenticated SSH connections to fleet devices using
// the credentials already configured for the instructor account.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// defaultKeyNames are tried in ~/.ssh when no identity file is configured.
var defaultKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa"}

// ClientConfig holds options for creating an SSH client. The config layer
// has already merged ~/.ssh/config into these values.
type ClientConfig struct {
	// User is the login on the device. Empty falls back to $USER.
	User string

	// Port is the sshd port on the device. Zero means 22.
	Port int

	// IdentityFiles lists private keys to offer after the agent. Empty
	// means the default keys in ~/.ssh.
	IdentityFiles []string

	// AcceptUnknownHosts skips host key verification. Classroom machines
	// are reimaged often enough that known_hosts goes stale.
	AcceptUnknownHosts bool

	// HostKeyCallback overrides host key verification entirely.
	HostKeyCallback ssh.HostKeyCallback

	// ConnectTimeout bounds the TCP connect and handshake. Zero means no
	// limit beyond ctx.
	ConnectTimeout time.Duration
}

// Client is an SSH connection to a single device.
type Client struct {
	host string
	conn *ssh.Client
}

// Dial connects to host, authenticating with the agent and then the
// configured key files.
func Dial(ctx context.Context, host string, conf ClientConfig) (*Client, error) {
	hostKeys, err := resolveHostKeyCallback(conf)
	if err != nil {
		return nil, fmt.Errorf("host key callback: %w", err)
	}
	addr, user, auth := resolveConnection(host, conf)

	if conf.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.ConnectTimeout)
		defer cancel()
	}

	var d net.Dialer
	tcp, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	// Closing the socket is the only way to interrupt a handshake in
	// progress.
	stop := context.AfterFunc(ctx, func() { tcp.Close() })
	conn, chans, reqs, err := ssh.NewClientConn(tcp, addr, &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         conf.ConnectTimeout,
	})
	if !stop() {
		if err == nil {
			conn.Close()
		}
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, ctx.Err())
	}
	if err != nil {
		tcp.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	return &Client{host: host, conn: ssh.NewClient(conn, chans, reqs)}, nil
}

// SFTP opens an SFTP session on the connection. The caller closes it.
func (c *Client) SFTP() (*sftp.Client, error) {
	s, err := sftp.NewClient(c.conn)
	if err != nil {
		return nil, fmt.Errorf("sftp session with %s: %w", c.host, err)
	}
	return s, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Host returns the address this client is connected to.
func (c *Client) Host() string {
	return c.host
}

func resolveConnection(host string, conf ClientConfig) (addr, user string, auth []ssh.AuthMethod) {
	user = conf.User
	if user == "" {
		user = os.Getenv("USER")
	}
	port := conf.Port
	if port <= 0 {
		port = 22
	}

	if a := agentAuth.method(); a != nil {
		auth = append(auth, a)
	}
	keys := conf.IdentityFiles
	if len(keys) == 0 {
		keys = defaultKeyFiles()
	}
	for _, k := range keys {
		if signer := loadKeySigner(k); signer != nil {
			auth = append(auth, ssh.PublicKeys(signer))
		}
	}

	return net.JoinHostPort(host, strconv.Itoa(port)), user, auth
}

func defaultKeyFiles() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var files []string
	for _, name := range defaultKeyNames {
		f := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(f); err == nil {
			files = append(files, f)
		}
	}
	return files
}

// loadKeySigner returns nil for unreadable or passphrase-protected keys;
// those are expected to live in the agent.
func loadKeySigner(path string) ssh.Signer {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil
	}
	return signer
}

func resolveHostKeyCallback(conf ClientConfig) (ssh.HostKeyCallback, error) {
	switch {
	case conf.HostKeyCallback != nil:
		return conf.HostKeyCallback, nil
	case conf.AcceptUnknownHosts:
		return ssh.InsecureIgnoreHostKey(), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	path := filepath.Join(home, ".ssh", "known_hosts")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no known_hosts file found at %s; set network.insecure to skip host key verification", path)
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("parse known_hosts: %w", err)
	}
	return cb, nil
}
