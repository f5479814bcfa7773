// Package buildlog keeps a SQLite history of toolchain runs.
//
// Every completed run is stored with its outcome, timings and the git
// revision of the working directory, so `bundlekit history` can answer
// "what did the last builds do" without re-running them.
package buildlog
