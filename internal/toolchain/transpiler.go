package toolchain

import (
	"context"
	"fmt"
	"io"
	"strings"

	"git.home.luguber.info/inful/bundlekit/internal/sourcemap"
	"git.home.luguber.info/inful/bundlekit/internal/spec"
)

// Transpiler rewrites one source into w. Text copied from the source goes
// through w.WriteString, injected text through w.WritePadding and dropped
// source text through w.Discard so the mappings stay aligned.
type Transpiler func(ctx context.Context, s *spec.Spec, r io.Reader, w *sourcemap.Writer) error

// NullTranspiler copies the source unchanged.
func NullTranspiler(_ context.Context, _ *spec.Spec, r io.Reader, w *sourcemap.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	_, err = w.WriteString(string(data))
	return err
}

const (
	amdHeader = "define(function(require, exports, module) {\n"
	amdFooter = "});\n"
	amdIndent = "    "
)

// AMDTranspiler wraps the source in an AMD define block, indenting every
// non-empty line.
func AMDTranspiler(_ context.Context, _ *spec.Spec, r io.Reader, w *sourcemap.Writer) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	if err := w.WritePadding(amdHeader); err != nil {
		return err
	}
	src := string(data)
	for len(src) > 0 {
		line := src
		if i := strings.IndexByte(src, '\n'); i >= 0 {
			line = src[:i+1]
		}
		src = src[len(line):]
		if strings.TrimRight(line, "\r\n") != "" {
			if err := w.WritePadding(amdIndent); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		if err := w.WritePadding("\n"); err != nil {
			return err
		}
	}
	return w.WritePadding(amdFooter)
}
