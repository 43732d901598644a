package converter

import (
	"fmt"
	"os"

	"video-converter/internal/filesystem"
	"video-converter/internal/metrics"
)

// backupAndRemove copies path to path+suffix and deletes path only once
// the copy is verified. The original is untouched when the copy fails.
func backupAndRemove(path, suffix string) (string, error) {
	backup := path + suffix
	if err := filesystem.CopyFileVerified(path, backup); err != nil {
		metrics.BackupsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	metrics.BackupsTotal.WithLabelValues("success").Inc()

	if err := os.Remove(path); err != nil {
		return backup, fmt.Errorf("remove original %s: %w", path, err)
	}
	return backup, nil
}
