// Package cli implements the dicomvol command-line interface.
//
// The root command loads a DICOM series and prints the transfer functions of
// the selected preset. Subcommands build transfer functions without images
// (tf), list presets (presets), write coloured slice previews (preview) and
// create configuration files (config init).
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// created in the root command's persistent pre-run and passed through
// context.Context.
package cli
