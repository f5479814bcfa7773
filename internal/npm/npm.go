// Package npm reads just enough of node_modules to locate the entry file of
// an installed package.
package npm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sentinel errors returned by LocatePackageEntryFile.
var (
	ErrPackageNotFound = errors.New("could not locate package.json")
	ErrNoEntryPoint    = errors.New("package.json does not contain a main entry point")
)

// PackageJSON is the subset of package.json consulted for entry files. The
// browser field may also be an object of replacements, which is ignored.
type PackageJSON struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Main    string          `json:"main"`
	Browser json.RawMessage `json:"browser"`
}

// PackageJSONPath returns node_modules/<pkg>/package.json under workingDir.
func PackageJSONPath(workingDir, pkg string) string {
	return filepath.Join(workingDir, "node_modules", pkg, "package.json")
}

// ReadPackageJSON parses the package.json at path.
func ReadPackageJSON(path string) (*PackageJSON, error) {
	// #nosec G304 -- path is derived from working_dir and a package name
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pj PackageJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &pj, nil
}

func (p *PackageJSON) browserEntry() string {
	if len(p.Browser) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Browser, &s); err != nil {
		return ""
	}
	return s
}

// LocatePackageEntryFile returns the absolute entry file of pkg installed
// under workingDir/node_modules. The "browser" field wins over "main"; with
// neither, an index.js next to package.json is used when present.
func LocatePackageEntryFile(workingDir, pkg string) (string, error) {
	pjPath := PackageJSONPath(workingDir, pkg)
	pj, err := ReadPackageJSON(pjPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w for the npm package %q in the working directory %q", ErrPackageNotFound, pkg, workingDir)
		}
		return "", err
	}

	pkgDir := filepath.Dir(pjPath)
	for _, entry := range []string{pj.browserEntry(), pj.Main} {
		if entry != "" {
			return filepath.Join(pkgDir, filepath.FromSlash(entry)), nil
		}
	}

	index := filepath.Join(pkgDir, "index.js")
	if info, err := os.Stat(index); err == nil && !info.IsDir() {
		return index, nil
	}
	return "", fmt.Errorf("%s for the npm package %q: %w", pjPath, pkg, ErrNoEntryPoint)
}
