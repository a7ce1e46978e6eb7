package ssh

import (
	"net"
	"os"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// agentAuth is shared by every worker of a batch so a whole classroom
// authenticates over one agent socket.
var agentAuth agentCache

type agentCache struct {
	mu     sync.Mutex
	conn   net.Conn
	client agent.ExtendedAgent
}

// CloseAgent closes the shared agent connection, if any.
func CloseAgent() {
	agentAuth.close()
}

// method returns agent authentication, or nil if no agent is running or
// it holds no keys.
func (a *agentCache) method() ssh.AuthMethod {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil
		}
		a.conn, a.client = conn, agent.NewClient(conn)
	}

	keys, err := a.client.List()
	if err != nil {
		// Stale socket; retry on the next dial.
		a.closeLocked()
		return nil
	}
	if len(keys) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(a.client.Signers)
}

func (a *agentCache) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

func (a *agentCache) closeLocked() {
	if a.conn != nil {
		a.conn.Close()
	}
	a.conn, a.client = nil, nil
}
