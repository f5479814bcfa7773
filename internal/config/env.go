package config

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"

	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
)

// envFiles are loaded in order; variables already present in the process
// environment are never overridden.
var envFiles = []string{".env", ".env.local"}

func loadEnvFiles(logger *slog.Logger) error {
	for _, name := range envFiles {
		err := godotenv.Load(name)
		switch {
		case err == nil:
			logger.Debug("Loaded environment variables", slog.String("path", name))
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return ferrors.WrapError(err, ferrors.CategoryConfig, "load "+name).Build()
		}
	}
	return nil
}
