// Package s3 provides an Amazon S3 implementation of blobstore.WritableStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("volumes/embryo.zarr"),
//	    s3.WithRegion("us-east-1"),
//	)
//
// Keys are joined to the prefix with "/". Missing objects are reported as
// blobstore.ErrNotFound.
package s3
