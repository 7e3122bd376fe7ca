package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/forecourtlabs/pos_backend/utils"
	"github.com/sirupsen/logrus"
)

// Runtime wires the agent's pieces together. Everything the agent touches
// hangs off this struct so tests can substitute any part.
type Runtime struct {
	Config *Config
	Ledger *Ledger
	Logger *logrus.Logger
	Client *Client
}

func NewRuntime(cfg *Config, logger *logrus.Logger) *Runtime {
	return &Runtime{
		Config: cfg,
		Ledger: LoadLedger(cfg.StatePath),
		Logger: logger,
		Client: NewClient(cfg),
	}
}

// Run watches the configured directory and uploads candidate files until the
// context is canceled. In dry-run mode matches are logged and nothing is
// uploaded or recorded.
func (rt *Runtime) Run(ctx context.Context, dryRun bool) error {
	paths, err := Watch(ctx, rt.Config, rt.Logger)
	if err != nil {
		return err
	}

	tasks := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < rt.Config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range tasks {
				if err := rt.ProcessFile(ctx, path); err != nil {
					// Left pending; the next rescan picks it up again.
					rt.Logger.WithFields(logrus.Fields{"filePath": path}).Warn("upload failed: " + err.Error())
				}
			}
		}()
	}

	rt.Logger.WithFields(logrus.Fields{
		"watchPath": rt.Config.WatchPath,
		"fileGlob":  rt.Config.FileGlob,
		"dryRun":    dryRun,
	}).Info("watcher started")

	for {
		select {
		case <-ctx.Done():
			close(tasks)
			wg.Wait()
			return nil
		case path, ok := <-paths:
			if !ok {
				close(tasks)
				wg.Wait()
				return nil
			}
			if dryRun {
				rt.Logger.WithFields(logrus.Fields{"filePath": path}).Info("dry-run detected file")
				continue
			}
			select {
			case tasks <- path:
			case <-ctx.Done():
				close(tasks)
				wg.Wait()
				return nil
			}
		}
	}
}

// ProcessFile takes one candidate through the full pipeline: size filter,
// stability check, hash, ledger dedup, upload with retries, ledger record.
// A non-nil error means the file stays pending for a later scan.
func (rt *Runtime) ProcessFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Renamed or removed between detection and processing.
			return nil
		}
		return err
	}
	if info.Size() > rt.Config.MaxFileSizeBytes {
		rt.Logger.WithFields(logrus.Fields{"filePath": path, "sizeBytes": info.Size()}).Warn("file too large, skipping")
		return nil
	}

	stable, err := rt.isStable(ctx, path, info.Size())
	if err != nil {
		return err
	}
	if !stable {
		// Still being written; a later cycle will see it settled.
		rt.Logger.WithFields(logrus.Fields{"filePath": path}).Info("file not stable yet")
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sha256 := utils.HashFileBytes(raw)
	key := rt.Ledger.Key(path, sha256)
	if rt.Ledger.Seen(key) {
		rt.Logger.WithFields(logrus.Fields{"filePath": path}).Debug("file already uploaded")
		return nil
	}

	result, err := rt.uploadWithRetry(ctx, path, sha256, raw)
	if err != nil {
		return err
	}
	if err := rt.Ledger.MarkUploaded(key, LedgerEntry{Sha256: sha256, MtimeMs: info.ModTime().UnixMilli()}); err != nil {
		rt.Logger.WithFields(logrus.Fields{"filePath": path}).Warn("failed to persist upload state: " + err.Error())
	}
	rt.Logger.WithFields(logrus.Fields{
		"filePath":     path,
		"submissionId": result.SubmissionId,
		"duplicate":    result.Duplicate,
		"parsed":       result.Parsed,
	}).Info("uploaded file")
	return nil
}

// isStable treats an unchanged size across the stability window as settled.
func (rt *Runtime) isStable(ctx context.Context, path string, sizeBefore int64) (bool, error) {
	if err := sleepContext(ctx, rt.Config.StabilityWindow()); err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Size() == sizeBefore, nil
}

func (rt *Runtime) uploadWithRetry(ctx context.Context, path string, sha256 string, content []byte) (*UploadResult, error) {
	filename := filepath.Base(path)
	var lastErr error
	for attempt := 1; attempt <= rt.Config.Retry.MaxAttempts; attempt++ {
		result, err := rt.Client.Upload(ctx, rt.Config.StoreId, rt.Config.DeviceId, filename, sha256, content)
		if err == nil {
			return result, nil
		}
		var fatal *FatalUploadError
		if errors.As(err, &fatal) {
			return nil, err
		}
		lastErr = err

		delay := retryDelay(rt.Config.Retry, attempt)
		rt.Logger.WithFields(logrus.Fields{
			"filePath": path,
			"attempt":  attempt,
			"delayMs":  delay.Milliseconds(),
		}).Warn("upload failed, retrying: " + err.Error())
		if err := sleepContext(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("max retry attempts reached: %w", lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
