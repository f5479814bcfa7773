// Package workspace manages the build directory of a toolchain run,
// supporting both ephemeral (auto-created) and persistent (caller-supplied)
// modes.
//
// Ephemeral mode creates a fresh temporary directory, canonicalises it and
// uses its "build" subdirectory as build_dir, removing the whole tree on
// cleanup.
//
// Persistent mode validates a directory supplied by the caller and resolves
// it to its real path. Cleanup leaves it untouched.
package workspace
