package advice

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/bundlekit/internal/logfields"
	"git.home.luguber.info/inful/bundlekit/internal/outcome"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// Advice packages shipped with bundlekit.
const (
	// PackageBanner prefixes the linked export target with a comment naming
	// the build. The "timestamp" extra adds the link time.
	PackageBanner = "bundlekit.banner"
	// PackageManifest writes <export_target>.manifest.json after a
	// successful run.
	PackageManifest = "bundlekit.manifest"
)

// Manifest is the document written by PackageManifest.
type Manifest struct {
	BuildID           string            `json:"build_id"`
	ExportTarget      string            `json:"export_target"`
	ExportModuleNames []string          `json:"export_module_names"`
	ArtifactPaths     []string          `json:"artifact_paths,omitempty"`
	Modpaths          map[string]string `json:"modpaths,omitempty"`
}

// RegisterBuiltins adds the bundled advice packages to r. The banner needs
// a linked export target and is only offered to the concat toolchain; the
// manifest works for any toolchain.
func RegisterBuiltins(r *Registry) {
	r.Register(PackageBanner, "concat", bannerSetup(r))
	r.Register(PackageManifest, "toolchain", manifestSetup(r))
}

func bannerSetup(r *Registry) SetupFunc {
	return func(_ context.Context, s *spec.Spec, extras []string) error {
		withTime := slices.Contains(extras, "timestamp")
		return s.Advise(spec.AfterLink, func(context.Context) error {
			target := s.GetString(spec.KeyExportTarget)
			// #nosec G304 -- export target is operator configuration
			body, err := os.ReadFile(target)
			if err != nil {
				return outcome.AdviceAbort("banner: read export target: %v", err)
			}
			banner := "/* bundlekit build " + s.GetString(spec.KeyBuildID)
			if withTime {
				banner += " at " + time.Now().UTC().Format(time.RFC3339)
			}
			banner += " */\n"
			if err := os.WriteFile(target, append([]byte(banner), body...), 0o600); err != nil {
				return outcome.AdviceAbort("banner: write export target: %v", err)
			}
			r.logger.Debug("Added banner to export target", logfields.Path(target))
			return nil
		})
	}
}

func manifestSetup(r *Registry) SetupFunc {
	return func(_ context.Context, s *spec.Spec, _ []string) error {
		return s.Advise(spec.Success, func(context.Context) error {
			target := s.GetString(spec.KeyExportTarget)
			if target == "" {
				return outcome.AdviceCancel("manifest: %s is not set", spec.KeyExportTarget)
			}
			m := Manifest{
				BuildID:           s.GetString(spec.KeyBuildID),
				ExportTarget:      target,
				ExportModuleNames: s.GetStrings(spec.KeyExportModuleNames),
				ArtifactPaths:     s.GetStrings(spec.KeyArtifactPaths),
				Modpaths:          map[string]string{},
			}
			for _, key := range s.Keys() {
				if !strings.HasSuffix(key, spec.SuffixModpaths) {
					continue
				}
				mp, _ := s.GetStringMap(key)
				maps.Copy(m.Modpaths, mp)
			}
			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return fmt.Errorf("manifest: %w", err)
			}
			path := target + ".manifest.json"
			if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
				return outcome.AdviceAbort("manifest: write %s: %v", path, err)
			}
			s.Set(spec.KeyArtifactPaths, append(slices.Clone(s.GetStrings(spec.KeyArtifactPaths)), path))
			r.logger.Info("Wrote build manifest", logfields.Path(path))
			return nil
		})
	}
}
