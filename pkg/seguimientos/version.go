// Package seguimientos holds build metadata for the seguimientos binaries.
package seguimientos

// Version is overridden at build time via -ldflags "-X".
var Version = "0.1.0"
