package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agent462/lanshare/internal/pathutil"
)

// SCPCopier delegates each copy to the system scp binary, which reuses the
// user's ssh configuration, agent and keys.
type SCPCopier struct {
	// Command is the scp binary. Defaults to "scp".
	Command string
	// Port is the remote SSH port.
	Port int
	// ConnectTimeout is passed as ConnectTimeout, rounded up to seconds.
	// Defaults to 3s.
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Args builds the scp argument list. A local src is expanded to its
// entries so the folder's contents, not the folder itself, land in dst. A
// remote src is copied as the folder itself; Copy unpacks it. It returns
// nil when a local src is empty.
func (c *SCPCopier) Args(src, dst string) ([]string, error) {
	sources, err := expandSource(src)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, nil
	}

	timeout := int(math.Ceil(c.ConnectTimeout.Seconds()))
	if timeout <= 0 {
		timeout = 3
	}
	args := []string{
		"-o", "ConnectTimeout=" + strconv.Itoa(timeout),
		"-o", "BatchMode=yes",
		"-r",
	}
	if c.Port > 0 {
		args = append(args, "-P", strconv.Itoa(c.Port))
	}
	args = append(args, sources...)
	if _, remote := pathutil.SplitRemote(dst); remote {
		args = append(args, dst)
	} else {
		args = append(args, pathutil.ExpandHome(dst))
	}
	return args, nil
}

// Copy runs scp once. The exit status decides success.
func (c *SCPCopier) Copy(ctx context.Context, src, dst string) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if r, remote := pathutil.SplitRemote(src); remote {
		return c.pull(ctx, r, pathutil.ExpandHome(dst), logger)
	}

	args, err := c.Args(src, dst)
	if err != nil {
		return err
	}
	if args == nil {
		logger.Debug("nothing to copy", "src", src)
		return nil
	}

	return c.run(ctx, args, logger)
}

// pull copies the remote folder into a staging folder inside dst and moves
// its contents up. A glob over the remote folder would fail when the
// student saved nothing; copying the folder itself succeeds even if empty.
func (c *SCPCopier) pull(ctx context.Context, src pathutil.Remote, dst string, logger *slog.Logger) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("create local dir: %w", err)
	}
	stage, err := os.MkdirTemp(dst, ".lanshare-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	args, err := c.Args(src.String(), stage)
	if err != nil {
		return err
	}
	if err := c.run(ctx, args, logger); err != nil {
		return err
	}

	pulled := filepath.Join(stage, path.Base(src.Path))
	entries, err := os.ReadDir(pulled)
	if err != nil {
		return fmt.Errorf("read pulled folder: %w", err)
	}
	for _, e := range entries {
		target := filepath.Join(dst, e.Name())
		// A fresh copy replaces what an earlier fetch left behind.
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("replace %s: %w", target, err)
		}
		if err := os.Rename(filepath.Join(pulled, e.Name()), target); err != nil {
			return fmt.Errorf("move %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (c *SCPCopier) run(ctx context.Context, args []string, logger *slog.Logger) error {
	command := c.Command
	if command == "" {
		command = "scp"
	}
	logger.Debug("exec", "cmd", command, "args", args)

	out, err := exec.CommandContext(ctx, command, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s: %w", command, err)
		}
		return fmt.Errorf("%s: %w: %s", command, err, msg)
	}
	return nil
}

// expandSource returns the entries of a local src, globbed here since no
// shell is involved. A remote src is returned as is.
func expandSource(src string) ([]string, error) {
	if _, remote := pathutil.SplitRemote(src); remote {
		return []string{src}, nil
	}

	dir := pathutil.ExpandHome(src)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("local source: %w", err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}
	entries, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(entries)
	return entries, nil
}
