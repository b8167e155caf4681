// Package minio provides a blobstore.WritableStore using the MinIO client.
//
// It works with MinIO and any S3-compatible storage (Ceph, Garage,
// SeaweedFS) without AWS dependencies:
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "volumes", "embryo.zarr")
//	src, err := volcache.OpenRemote(ctx, store, nil)
package minio
