// Package chips cuts annotated objects out of positive images and prunes the
// resulting chips.
//
// Chips are written to <output_root>/<category>/<stem>_<row>.<ext>, where
// row is the annotation file row the chip was cut from. A chip is never
// modified after it is written; the Filter only deletes.
package chips
