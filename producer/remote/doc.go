// Package remote implements a chunk.Producer reading a Zarr v2 multiscale
// array from a blobstore.Store.
//
// Each pyramid level is an array under "<level>/" described by a ".zarray"
// JSON document. Arrays are either five-dimensional (t, c, z, y, x) or
// three-dimensional (z, y, x), hold uint16 samples in C order and are
// compressed with a codec from package codec.
//
//	store, _ := blobstore.NewHTTPStore("https://example.org/volume.zarr")
//	p, err := remote.New(ctx, store, remote.WithNetworkTimeout(10*time.Second))
//	if err != nil {
//		// errors.Is(err, chunk.ErrMetadataFetchFailed)
//	}
//	samples, err := p.Produce(ctx, chunk.NewKey(0, pyramid.ChunkCoord{}))
package remote
