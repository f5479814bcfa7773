package loaderplugin

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/npm"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// NPMHandler is a handler whose runtime source ships as an npm package
// installed under working_dir/node_modules.
type NPMHandler struct {
	*BaseHandler

	// PackageName is the npm package providing the plugin. When empty,
	// FindPackageName is consulted.
	PackageName     string
	FindPackageName func(s *spec.Spec) string
}

// NewNPMHandler creates a handler for name backed by npm package pkg.
func NewNPMHandler(r *Registry, name, pkg string) *NPMHandler {
	return &NPMHandler{BaseHandler: NewBaseHandler(r, name), PackageName: pkg}
}

func (h *NPMHandler) packageName(s *spec.Spec) string {
	if h.PackageName != "" {
		return h.PackageName
	}
	if h.FindPackageName != nil {
		return h.FindPackageName(s)
	}
	return ""
}

// GenerateHandlerSourcepath adds the package entry file under the plugin
// name, together with the sources of any chained plugins. When the package
// cannot be located nothing is contributed and a warning explains why.
func (h *NPMHandler) GenerateHandlerSourcepath(ctx context.Context, s *spec.Spec, sourcepath map[string]string) map[string]string {
	logger := h.registry.logger
	pkg := h.packageName(s)
	if pkg == "" {
		logger.Error("no npm package name specified or could be resolved for loaderplugin",
			logfields.Plugin(h.Name()), slog.String("registry", h.registry.name))
		return map[string]string{}
	}

	workingDir := s.GetString(spec.KeyWorkingDir)
	if workingDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			logger.Error("cannot derive working directory", logfields.Error(err))
			return map[string]string{}
		}
		logger.Info("spec is missing working_dir; deriving working directory from the current process",
			logfields.Path(cwd))
		workingDir = cwd
	}
	logger.Debug("deriving npm loader plugin", logfields.Path(workingDir), logfields.Package(pkg))

	target, err := npm.LocatePackageEntryFile(workingDir, pkg)
	if err == nil {
		logger.Debug("picked entry file for loader plugin", logfields.Plugin(h.Name()), logfields.Source(target))
		result := h.BaseHandler.GenerateHandlerSourcepath(ctx, s, sourcepath)
		result[h.Name()] = target
		return result
	}

	switch {
	case errors.Is(err, npm.ErrNoEntryPoint):
		logger.Warn("package.json of the npm package does not contain a valid entry point; sources required for the loader plugin cannot be included automatically; the build process may fail",
			logfields.Package(pkg), logfields.Plugin(h.Name()))
	case errors.Is(err, npm.ErrPackageNotFound):
		logger.Warn("could not locate package.json for the npm package providing the loader plugin; install it with 'npm install' or declare it as a dependency; the build process may fail",
			logfields.Package(pkg), logfields.Plugin(h.Name()), logfields.Path(workingDir))
	default:
		logger.Warn("failed to read npm package for loader plugin",
			logfields.Package(pkg), logfields.Plugin(h.Name()), logfields.Error(err))
	}
	return map[string]string{}
}
