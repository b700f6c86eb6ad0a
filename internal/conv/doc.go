// Package conv provides checked integer conversions for values that end up
// in fixed-width fields of persisted descriptors and tile bitmaps.
package conv
