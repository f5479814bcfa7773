package spec

// Event names an advice queue.
type Event string

// Blackhole discards any advice registered against it.
const Blackhole Event = ""

// Lifecycle events dispatched by the toolchain, in run order.
const (
	Setup          Event = "setup"
	BeforePrepare  Event = "before_prepare"
	AfterPrepare   Event = "after_prepare"
	BeforeCompile  Event = "before_compile"
	AfterCompile   Event = "after_compile"
	BeforeAssemble Event = "before_assemble"
	AfterAssemble  Event = "after_assemble"
	BeforeLink     Event = "before_link"
	AfterLink      Event = "after_link"
	BeforeFinalize Event = "before_finalize"
	AfterFinalize  Event = "after_finalize"
	Success        Event = "success"
	Cleanup        Event = "cleanup"

	// Reserved for test runners layered on top of a toolchain.
	BeforeTest Event = "before_test"
	AfterTest  Event = "after_test"
)

// Well-known spec keys.
const (
	KeyAdvicePackages                    = "advice_packages"
	KeyAdvicePackagesAppliedRequirements = "advice_packages_applied_requirements"
	KeyArtifactPaths                     = "artifact_paths"
	KeyBuildDir                          = "build_dir"
	KeyBuildID                           = "build_id"
	KeyDebug                             = "debug"
	KeyExportModuleNames                 = "export_module_names"
	KeyExportTarget                      = "export_target"
	KeyExportTargetOverwrite             = "export_target_overwrite"
	KeyGenerateSourceMap                 = "generate_source_map"
	KeyLoaderPluginRegistry              = "loaderplugin_registry"
	KeyLoaderPluginRegistryName          = "loaderplugin_registry_name"
	KeyLoaderPluginSourcepathMaps        = "loaderplugin_sourcepath_maps"
	KeySourcePackageNames                = "source_package_names"
	KeyToolchainBinPath                  = "toolchain_bin_path"
	KeyWorkingDir                        = "working_dir"
)

// Suffixes combined with a compile entry prefix ("transpile", "bundle", ...)
// to form its source, module path and target path map keys.
const (
	SuffixSourcepath  = "_sourcepath"
	SuffixModpaths    = "_modpaths"
	SuffixTargetpaths = "_targetpaths"
)
