package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
)

// ByteProgressFunc is called while a single file is copied over SFTP with
// the device host, the file path, bytes copied so far, and the file size.
type ByteProgressFunc func(host, file string, transferred, total int64)

type progressWriter struct {
	w          io.Writer
	host, file string
	done, size int64
	report     ByteProgressFunc
}

func newProgressWriter(w io.Writer, host, file string, size int64, fn ByteProgressFunc) *progressWriter {
	return &progressWriter{w: w, host: host, file: file, size: size, report: fn}
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.done += int64(n)
	if pw.report != nil {
		pw.report(pw.host, pw.file, pw.done, pw.size)
	}
	return n, err
}

// hashedCopy copies src to dst while reporting progress for name and
// returns the hex SHA-256 of what was written.
func hashedCopy(ctx context.Context, dst io.Writer, src io.Reader, host, name string, size int64, fn ByteProgressFunc) (int64, string, error) {
	h := sha256.New()
	n, err := copyWithContext(ctx, io.MultiWriter(newProgressWriter(dst, host, name, size, fn), h), src)
	return n, hex.EncodeToString(h.Sum(nil)), err
}

// copyWithContext copies in 32 KiB chunks and stops between chunks once
// ctx is done.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
		}
		switch {
		case errors.Is(rerr, io.EOF):
			return written, nil
		case rerr != nil:
			return written, rerr
		}
	}
}
