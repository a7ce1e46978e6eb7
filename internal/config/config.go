package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agent462/lanshare/internal/fleet"
	"github.com/agent462/lanshare/internal/pathutil"
)

// ErrNotFound is returned by Load when the config file does not exist.
var ErrNotFound = fmt.Errorf("config not found: %w", fs.ErrNotExist)

// Probe and transport names accepted in the network section.
const (
	ProbePing = "ping"
	ProbeTCP  = "tcp"

	TransportSCP  = "scp"
	TransportSFTP = "sftp"
)

// Config represents the top-level lanshare configuration.
type Config struct {
	Network Network `yaml:"network"`
	Folders Folders `yaml:"folders"`
}

// Network describes the classroom fleet and how to reach it.
type Network struct {
	FirstIP        string   `yaml:"first_ip"`
	NumClients     int      `yaml:"num_clients"`
	User           string   `yaml:"user"`
	RemotePort     int      `yaml:"remote_port"`
	Probe          string   `yaml:"probe"`     // "ping" or "tcp"
	Transport      string   `yaml:"transport"` // "scp" or "sftp"
	ConnectTimeout Duration `yaml:"connect_timeout"`
	ProbeTimeout   Duration `yaml:"probe_timeout"`
	IdentityFile   string   `yaml:"identity_file,omitempty"`
	Insecure       bool     `yaml:"insecure,omitempty"`
	// Verify re-reads each file copied over sftp and compares checksums.
	Verify         bool     `yaml:"verify"`
}

// Folders holds the remote exchange folder and the local base folders.
type Folders struct {
	Prefix   string `yaml:"prefix"`
	Exchange string `yaml:"exchange"`
	Share    string `yaml:"share"`
	Fetch    string `yaml:"fetch"`
	ShareAll string `yaml:"shareall"`
}

// Duration wraps time.Duration to support YAML unmarshaling from strings like "3s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// DefaultConfig returns a Config with the classroom defaults.
func DefaultConfig() *Config {
	return &Config{
		Network: Network{
			FirstIP:        "192.168.2.100",
			NumClients:     15,
			User:           "schueler",
			RemotePort:     32400,
			Probe:          ProbePing,
			Transport:      TransportSCP,
			ConnectTimeout: Duration{3 * time.Second},
			ProbeTimeout:   Duration{time.Second},
			Verify:         true,
		},
		Folders: Folders{
			Prefix:   "S",
			Exchange: "~/Schreibtisch/Austausch",
			Share:    "~/Schreibtisch/Austeilen",
			Fetch:    "~/Schreibtisch/Eingesammelt",
			ShareAll: "~/Schreibtisch/Austeilen/Alle",
		},
	}
}

// DefaultConfigPath returns the default config file path.
// Respects $XDG_CONFIG_HOME if set, otherwise falls back to ~/.config.
func DefaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir != "" {
		return filepath.Join(configDir, "lanshare", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lanshare", "config.yaml")
}

// Load reads and parses a config YAML file from the given path. Keys the
// file leaves out keep their defaults. Values set empty or zero in the file
// are taken from ~/.ssh/config before the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.MergeSSHConfig(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to the given file path as YAML.
// It creates parent directories if they don't exist.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks the config for logical errors.
func (c *Config) Validate() error {
	n := c.Network
	if net.ParseIP(n.FirstIP).To4() == nil {
		return fmt.Errorf("first_ip %q is not an IPv4 address", n.FirstIP)
	}
	if err := c.Fleet().Validate(); err != nil {
		return err
	}
	if n.RemotePort < 1 || n.RemotePort > 65535 {
		return fmt.Errorf("remote_port must be between 1 and 65535, got %d", n.RemotePort)
	}

	switch n.Probe {
	case ProbePing, ProbeTCP:
	default:
		return fmt.Errorf("invalid probe %q, must be one of: ping, tcp", n.Probe)
	}
	switch n.Transport {
	case TransportSCP, TransportSFTP:
	default:
		return fmt.Errorf("invalid transport %q, must be one of: scp, sftp", n.Transport)
	}

	if n.ConnectTimeout.Duration < 0 {
		return fmt.Errorf("connect_timeout must be non-negative, got %s", n.ConnectTimeout)
	}
	if n.ProbeTimeout.Duration < 0 {
		return fmt.Errorf("probe_timeout must be non-negative, got %s", n.ProbeTimeout)
	}

	f := c.Folders
	if f.Prefix == "" {
		return fmt.Errorf("folder prefix must not be empty")
	}
	for name, dir := range map[string]string{
		"exchange": f.Exchange,
		"share":    f.Share,
		"fetch":    f.Fetch,
		"shareall": f.ShareAll,
	} {
		if dir == "" {
			return fmt.Errorf("folder %q must not be empty", name)
		}
	}

	return nil
}

// Fleet converts the config into device addressing. Local folders are
// expanded; the exchange folder stays as written since it is resolved on
// the device.
func (c *Config) Fleet() fleet.Fleet {
	return fleet.Fleet{
		FirstIP:  net.ParseIP(c.Network.FirstIP).To4(),
		Size:     c.Network.NumClients,
		User:     c.Network.User,
		Port:     c.Network.RemotePort,
		Prefix:   c.Folders.Prefix,
		Exchange: c.Folders.Exchange,
		Share:    pathutil.ExpandHome(c.Folders.Share),
		Fetch:    pathutil.ExpandHome(c.Folders.Fetch),
		ShareAll: pathutil.ExpandHome(c.Folders.ShareAll),
	}
}

// EnsureFolders creates the local share, fetch and share-all folders and
// one share and fetch subfolder per device. Existing folders are left alone.
func (c *Config) EnsureFolders() error {
	f := c.Fleet()
	dirs := []string{f.Share, f.Fetch, f.ShareAll}
	for _, d := range f.Devices() {
		dirs = append(dirs, f.ShareDir(d), f.FetchDir(d))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create folder: %w", err)
		}
	}
	return nil
}
