// Package testutil provides producers and helpers for volcache tests.
//
// This package is intended for use in tests and benchmarks only.
//
// # Instrumented Producers
//
//	base := testutil.Constant(pyramid.Cube(8), 42)
//	counting := testutil.NewCounting(base)   // counts Produce calls per key
//	slow := testutil.NewSlow(base, time.Second) // sleeps, honouring ctx
//	gated := testutil.NewGated(base)         // blocks until Open
//	failing := testutil.NewFailing(base, err, 1) // fails the first call
//
// # Random Keys
//
//	rng := testutil.NewRNG(seed)
//	key := rng.Key(level, pyramid.Cube(4))
package testutil
