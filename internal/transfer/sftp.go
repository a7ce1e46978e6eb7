package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"

	"github.com/agent462/lanshare/internal/pathutil"
	hssh "github.com/agent462/lanshare/internal/ssh"
)

// SFTPCopier copies folder trees over an in-process SSH connection instead
// of spawning scp. Exactly one side of each copy must be remote.
type SFTPCopier struct {
	// Conf carries port, keys, host key policy and connect timeout. The
	// user in the remote endpoint overrides Conf.User.
	Conf hssh.ClientConfig
	// Verify re-reads every copied file and compares SHA-256 checksums.
	Verify     bool
	OnProgress ByteProgressFunc
	Logger     *slog.Logger
}

// treeStats counts what a tree copy moved.
type treeStats struct {
	Files int
	Bytes int64
}

// Copy dials the remote side and copies the contents of src into dst.
func (c *SFTPCopier) Copy(ctx context.Context, src, dst string) error {
	srcRemote, srcIsRemote := pathutil.SplitRemote(src)
	dstRemote, dstIsRemote := pathutil.SplitRemote(dst)
	if srcIsRemote == dstIsRemote {
		return fmt.Errorf("exactly one of %q and %q must be a remote endpoint", src, dst)
	}

	remote := dstRemote
	if srcIsRemote {
		remote = srcRemote
	}
	conf := c.Conf
	if remote.User != "" {
		conf.User = remote.User
	}

	client, err := hssh.Dial(ctx, remote.Host, conf)
	if err != nil {
		return hssh.WrapConnectError(remote.Host, err)
	}
	defer client.Close()

	sftpClient, err := client.SFTP()
	if err != nil {
		return err
	}
	defer sftpClient.Close()

	var stats treeStats
	if dstIsRemote {
		err = c.pushTree(ctx, sftpClient, pathutil.ExpandHome(src), dstRemote.HomeRelative(), client.Host(), &stats)
	} else {
		err = c.pullTree(ctx, sftpClient, srcRemote.HomeRelative(), pathutil.ExpandHome(dst), client.Host(), &stats)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("sftp copy", "host", client.Host(), "src", src, "dst", dst, "files", stats.Files, "bytes", stats.Bytes, "err", err)
	return err
}

// pushTree uploads everything under localRoot into remoteRoot.
func (c *SFTPCopier) pushTree(ctx context.Context, s *sftp.Client, localRoot, remoteRoot, host string, stats *treeStats) error {
	if err := s.MkdirAll(remoteRoot); err != nil {
		return fmt.Errorf("create remote dir %s: %w", remoteRoot, err)
	}

	return filepath.WalkDir(localRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(localRoot, p)
		if err != nil || rel == "." {
			return err
		}
		// Use path (not filepath) because the remote side is always Unix.
		target := path.Join(remoteRoot, filepath.ToSlash(rel))

		switch {
		case d.IsDir():
			if err := s.MkdirAll(target); err != nil {
				return fmt.Errorf("create remote dir %s: %w", target, err)
			}
		case d.Type().IsRegular():
			n, err := c.pushFile(ctx, s, p, target, host)
			if err != nil {
				return err
			}
			stats.Files++
			stats.Bytes += n
		}
		return nil
	})
}

func (c *SFTPCopier) pushFile(ctx context.Context, s *sftp.Client, localPath, remotePath, host string) (int64, error) {
	localFile, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open local file: %w", err)
	}
	defer localFile.Close()

	stat, err := localFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat local file: %w", err)
	}

	remoteFile, err := s.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("create remote file %s: %w", remotePath, err)
	}

	written, sum, err := hashedCopy(ctx, remoteFile, localFile, host, remotePath, stat.Size(), c.OnProgress)
	// Flush before the checksum re-read.
	remoteFile.Close()
	if err != nil {
		return written, fmt.Errorf("copy %s: %w", localPath, err)
	}

	if c.Verify {
		if err := verifyRemote(s, remotePath, sum); err != nil {
			return written, err
		}
	}
	return written, nil
}

// pullTree downloads everything under remoteRoot into localRoot.
func (c *SFTPCopier) pullTree(ctx context.Context, s *sftp.Client, remoteRoot, localRoot, host string, stats *treeStats) error {
	if err := os.MkdirAll(localRoot, 0755); err != nil {
		return fmt.Errorf("create local dir: %w", err)
	}

	walker := s.Walk(remoteRoot)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return fmt.Errorf("walk %s: %w", walker.Path(), err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel := remoteRel(remoteRoot, walker.Path())
		if rel == "" {
			continue
		}
		target := filepath.Join(localRoot, filepath.FromSlash(rel))

		info := walker.Stat()
		switch {
		case info.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create local dir: %w", err)
			}
		case info.Mode().IsRegular():
			n, err := c.pullFile(ctx, s, walker.Path(), target, host)
			if err != nil {
				return err
			}
			stats.Files++
			stats.Bytes += n
		}
	}
	return nil
}

func (c *SFTPCopier) pullFile(ctx context.Context, s *sftp.Client, remotePath, localPath, host string) (int64, error) {
	remoteFile, err := s.Open(remotePath)
	if err != nil {
		return 0, fmt.Errorf("open remote file %s: %w", remotePath, err)
	}
	defer remoteFile.Close()

	stat, err := remoteFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat remote file: %w", err)
	}

	localFile, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("create local file: %w", err)
	}
	defer localFile.Close()

	written, sum, err := hashedCopy(ctx, localFile, remoteFile, host, remotePath, stat.Size(), c.OnProgress)
	if err != nil {
		return written, fmt.Errorf("copy %s: %w", remotePath, err)
	}

	if c.Verify {
		if err := verifyRemote(s, remotePath, sum); err != nil {
			return written, err
		}
	}
	return written, nil
}

// remoteRel returns p relative to root, or "" for root itself.
func remoteRel(root, p string) string {
	root = path.Clean(root)
	p = path.Clean(p)
	if p == root {
		return ""
	}
	if root == "." {
		return p
	}
	return strings.TrimPrefix(p, strings.TrimSuffix(root, "/")+"/")
}

// verifyRemote re-reads remotePath over the same SFTP session and compares
// its SHA-256 with want.
func verifyRemote(s *sftp.Client, remotePath, want string) error {
	got, err := remoteSHA256(s, remotePath)
	if err != nil {
		return fmt.Errorf("remote checksum verification failed: %w", err)
	}
	if got != want {
		return fmt.Errorf("checksum mismatch for %s: local=%s remote=%s", remotePath, want, got)
	}
	return nil
}

func hashRemoteFile(s *sftp.Client, remotePath string) (string, error) {
	f, err := s.Open(remotePath)
	if err != nil {
		return "", fmt.Errorf("open remote file for checksum: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("read remote file for checksum: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// remoteSHA256 is replaced in tests to simulate corruption.
var remoteSHA256 = hashRemoteFile
