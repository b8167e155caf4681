// Package volcache serves fixed-size chunks of a multi-resolution 3D volume
// on demand, with bounded memory.
//
// A Source binds a pyramid geometry (one level per resolution, level 0
// coarsest) to a chunk producer and a cache. Chunks come from a procedural
// Mandelbulb or from a remote Zarr v2 array in a blob store.
//
// # Quick Start
//
// Procedural volume:
//
//	src, _ := volcache.NewProcedural([]int64{64, 128, 256}, pyramid.Cube(32), procedural.Config{})
//	defer src.Close()
//
// Remote volume:
//
//	store, _ := blobstore.NewHTTPStore("https://example.org/volume.zarr")
//	src, _ := volcache.OpenRemote(ctx, store, nil, volcache.WithMaxResidentBytes(1<<30))
//
// # Access Modes
//
// Blocking requests always return samples or an error:
//
//	samples, _ := src.GetChunk(ctx, 2, pyramid.ChunkCoord{})
//	region, _ := src.EnsureRegionBlocking(ctx, 2, bounds) // pinned until Release
//	defer region.Release()
//
// Budgeted requests never wait for production. They return what is resident
// and queue the rest, nearest the focal level and region centre first:
//
//	region, _ := src.SampleRegion(2, bounds)
//	draw(region.Chunks)
//	region.Release()
//
// Subscribe delivers an event whenever a chunk becomes ready, fails or is
// evicted, so a renderer can sample again.
//
// # Memory
//
// Residency is bounded by WithMaxResidentChunks and WithMaxResidentBytes.
// Unpinned chunks are evicted in least-recently-used order. Share one
// resource.Controller across sources for a process-wide soft limit.
package volcache
