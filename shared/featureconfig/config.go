// Package featureconfig holds the small set of opt-in, debug-oriented
// runtime toggles this module exposes, in the style of a beacon-chain
// client's feature-flag singleton: parsed once at startup from CLI flags,
// read from anywhere in the process via Get.
package featureconfig

// Flags is the set of optional behaviors a caller may enable at startup.
type Flags struct {
	// WriteBlockProcessingSSZ dumps every block entering the execution-pending
	// stage to SSZDumpDir, keyed by its tree-hash root. Not defended against a
	// malicious block: a debug aid for offline replay, not a production
	// safeguard.
	WriteBlockProcessingSSZ bool
	// SSZDumpDir is where WriteBlockProcessingSSZ writes its dumps; empty
	// means os.TempDir().
	SSZDumpDir string
}

var active *Flags

// Get returns the active flag set, or the zero value if Init was never called.
func Get() *Flags {
	if active == nil {
		return &Flags{}
	}
	return active
}

// Init sets the process-wide flag set.
func Init(f *Flags) {
	active = f
}
