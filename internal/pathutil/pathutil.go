// Package pathutil holds the small path helpers shared by the local and
// remote sides of a transfer.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading ~/ to the user's home directory.
// Paths like ~otheruser/... are returned unchanged since we cannot
// reliably resolve other users' home directories.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") && path != "~" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// Remote is a parsed "user@host:path" endpoint.
type Remote struct {
	User string
	Host string
	Path string
}

// String renders the endpoint back into scp notation.
func (r Remote) String() string {
	if r.User == "" {
		return r.Host + ":" + r.Path
	}
	return r.User + "@" + r.Host + ":" + r.Path
}

// HomeRelative returns the remote path relative to the login directory,
// which is how SFTP servers resolve paths without a leading slash.
func (r Remote) HomeRelative() string {
	switch {
	case r.Path == "~" || r.Path == "":
		return "."
	case strings.HasPrefix(r.Path, "~/"):
		return r.Path[2:]
	}
	return r.Path
}

// SplitRemote parses an scp-style endpoint. A spec without a host part
// before the first colon, or one that starts with a path separator or a
// dot, is local and reported with ok == false.
func SplitRemote(spec string) (r Remote, ok bool) {
	if spec == "" || strings.HasPrefix(spec, "/") || strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "~") {
		return Remote{}, false
	}
	colon := strings.Index(spec, ":")
	if colon <= 0 {
		return Remote{}, false
	}
	hostPart := spec[:colon]
	if strings.Contains(hostPart, "/") {
		return Remote{}, false
	}
	r.Path = spec[colon+1:]
	if at := strings.LastIndex(hostPart, "@"); at >= 0 {
		r.User = hostPart[:at]
		r.Host = hostPart[at+1:]
	} else {
		r.Host = hostPart
	}
	if r.Host == "" {
		return Remote{}, false
	}
	return r, true
}
