// Package dataset defines the on-disk layout shared by every pipeline stage,
// the calibration ratio type, and the error taxonomy used across the module.
//
// # Layout
//
//	<output_root>/<category>/<stem>_<row>.<ext>        cropped chips
//	<output_root>/<category>/size_scale                calibration cache
//	<output_root>/synthetic/<category>/<chip>.<fmt>    composites
//	<output_root>/synthetic/<category>/annotations.csv synthetic boxes
//
// # Errors
//
// Stages wrap one of the sentinel errors below with item context using
// github.com/pkg/errors. Callers classify failures with errors.Is.
package dataset
