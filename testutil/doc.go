// Package testutil provides testing utilities for memdisk.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe source of reproducible byte patterns:
//
//	rng := testutil.NewRNG(seed)
//	buf := make([]byte, 4096)
//	rng.FillBytes(buf)
package testutil
