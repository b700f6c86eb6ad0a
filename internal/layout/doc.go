// Package layout maps logical cell coordinates of a dense domain to physical
// tile coordinates and in-tile offsets, and back.
//
// For dimension i with lower bound lo_i and tile extent e_i:
//
//	tile_i   = (c_i - lo_i) / e_i
//	local_i  = (c_i - lo_i) % e_i
//	offset   = sum(local_i * stride_i)
//
// where stride_i composes the tile extents in the configured cell order
// (row-major: last dimension fastest). Offsets always use the full tile
// extents as radices, so a boundary tile (one whose span is cut by the
// domain's upper bound) keeps the same offset space as an interior tile but
// has fewer valid cells; ValidCells reports that count separately from
// Capacity.
//
// Plan decomposes a region into the tiles it touches, each with the
// contiguous cell runs to copy between the tile and a buffer laid out in the
// region's canonical cell order.
package layout
