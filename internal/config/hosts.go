package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/kevinburke/ssh_config"

	"github.com/agent462/lanshare/internal/pathutil"
)

const defaultSSHConfigPath = "~/.ssh/config"

// sshConfigPath is the per-user ssh config consulted by MergeSSHConfig.
var sshConfigPath = defaultSSHConfigPath

// MergeSSHConfig reads ~/.ssh/config and fills in the remote user, port
// and identity file when the lanshare config left them empty. Load calls
// it, so a file with "remote_port: 0" takes the port from ssh. Lookups use
// the first device address, so a "Host 192.168.2.*" block applies to the
// whole fleet. A missing ssh config is not an error.
func (c *Config) MergeSSHConfig() error {
	f, err := os.Open(pathutil.ExpandHome(sshConfigPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open ssh config: %w", err)
	}
	defer f.Close()
	return c.mergeSSHConfig(f)
}

func (c *Config) mergeSSHConfig(r io.Reader) error {
	sshCfg, err := ssh_config.Decode(r)
	if err != nil {
		return fmt.Errorf("parse ssh config: %w", err)
	}
	get := func(key string) string {
		val, err := sshCfg.Get(c.Network.FirstIP, key)
		if err != nil {
			return ""
		}
		return val
	}

	if c.Network.User == "" {
		c.Network.User = get("User")
	}

	if c.Network.RemotePort == 0 {
		if port, err := strconv.Atoi(get("Port")); err == nil && port > 0 {
			c.Network.RemotePort = port
		}
	}

	if c.Network.IdentityFile == "" {
		if identity := get("IdentityFile"); identity != "" {
			expanded := pathutil.ExpandHome(identity)
			if _, err := os.Stat(expanded); err == nil {
				c.Network.IdentityFile = expanded
			}
		}
	}
	return nil
}
