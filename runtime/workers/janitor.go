package workers

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Janitor sweeps the work root for task directories left behind by a crash
// or a kill. Jobs remove their own directory on every normal path, so
// anything older than maxAge is an orphan.
type Janitor struct {
	log      *slog.Logger
	workRoot string
	interval time.Duration
	maxAge   time.Duration
}

func NewJanitor(log *slog.Logger, workRoot string, interval, maxAge time.Duration) *Janitor {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Janitor{log: log, workRoot: workRoot, interval: interval, maxAge: maxAge}
}

func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// One sweep at startup picks up leftovers from the previous run.
	j.Sweep()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep removes every task directory whose last modification is older than
// maxAge. Layout under the work root is <userID>/<taskID>.
func (j *Janitor) Sweep() {
	userDirs, err := os.ReadDir(j.workRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			j.log.Error("Work root scan failed", "root", j.workRoot, "error", err)
		}
		return
	}

	cutoff := time.Now().Add(-j.maxAge)

	for _, userDir := range userDirs {
		if !userDir.IsDir() {
			continue
		}
		userPath := filepath.Join(j.workRoot, userDir.Name())

		taskDirs, err := os.ReadDir(userPath)
		if err != nil {
			j.log.Error("User dir scan failed", "path", userPath, "error", err)
			continue
		}

		for _, taskDir := range taskDirs {
			taskPath := filepath.Join(userPath, taskDir.Name())
			info, err := taskDir.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}

			if err := os.RemoveAll(taskPath); err != nil {
				j.log.Error("Orphan removal failed", "path", taskPath, "error", err)
				continue
			}
			j.log.Info("Removed orphaned task dir", "path", taskPath)
		}

		// Drop the per-user directory once it is empty.
		if remaining, err := os.ReadDir(userPath); err == nil && len(remaining) == 0 {
			_ = os.Remove(userPath)
		}
	}
}
