// Package toolchain drives a Spec through the fixed build phases.
//
// A run handles the SETUP advices, then for each of prepare, compile,
// assemble, link and finalize the matching before_ advices, the phase
// itself and the after_ advices, and finally SUCCESS. CLEANUP advices are
// handled on every outcome, after which an auto-created build_dir is
// removed.
//
// The compile phase belongs to the Toolchain: every CompileEntry reads a
// "<read>_sourcepath" map from the Spec, names each module through the
// Namer, hands it to the entry handler registered for the entry's process
// and stores the results under "<store>_modpaths" and "<store>_targetpaths".
// The other phases are supplied through Steps.
package toolchain
