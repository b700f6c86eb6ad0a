// Package testutil provides testing utilities for Tessera.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, goroutine-safe random source and helpers for
// generating random regions and cell data.
//
//	rng := testutil.NewRNG(seed)
//	region := rng.Region(dom.Full())   // random sub-region
//	vals := make([]float32, region.NumCells())
//	rng.FillUniform(vals)
package testutil
