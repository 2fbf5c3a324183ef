package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/student-portal-api/pkg/jobs"
)

type fileRemover interface {
	Delete(name string) error
}

// NewFileCleanupHandler removes stored files for deleted documents. A file that is already gone
// is logged and treated as done.
func NewFileCleanupHandler(files fileRemover, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, job jobs.Job) error {
		name, ok := job.Payload.(string)
		if !ok || name == "" {
			logger.Warn("file cleanup job without filename", zap.String("job_id", job.ID))
			return nil
		}
		if err := files.Delete(name); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Info("stored file already removed", zap.String("filename", name))
				return nil
			}
			return fmt.Errorf("remove %s: %w", name, err)
		}
		logger.Debug("stored file removed", zap.String("filename", name), zap.Int("attempt", job.Attempt))
		return nil
	}
}
