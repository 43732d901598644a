package filesystem

import (
	"fmt"
	"io"
	"os"
	"time"
)

// CopyFileVerified copies src to dst, preserving the file mode and
// modification time, and checks that the number of bytes written matches
// the source size. dst is removed on any failure so a partial copy is
// never mistaken for a good backup.
func CopyFileVerified(src, dst string) (err error) {
	start := time.Now()
	defer func() {
		if obs := observe(); obs != nil {
			obs.ObserveOperation(defaultResolver.Resolve(dst), "copy", time.Since(start).Seconds(), err)
		}
	}()

	in, err := OpenWithRetry(src, DefaultRetryConfig())
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	written, err := io.Copy(out, in)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err = out.Sync(); err != nil {
		return fmt.Errorf("sync backup: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close backup: %w", err)
	}
	if written != info.Size() {
		err = fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
		return err
	}

	// Timestamps are best effort.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

// Rename moves src to dst, recording the operation for the destination
// volume.
func Rename(src, dst string) error {
	start := time.Now()
	err := os.Rename(src, dst)
	if obs := observe(); obs != nil {
		obs.ObserveOperation(defaultResolver.Resolve(dst), "rename", time.Since(start).Seconds(), err)
	}
	return err
}
