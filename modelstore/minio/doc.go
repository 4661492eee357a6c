// Package minio implements modelstore.Store using the MinIO client.
//
// MinIO is a high-performance, S3-compatible object storage system.
// This package works with any S3-compatible backend (MinIO, Ceph,
// Garage, SeaweedFS) without pulling in the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := miniostore.NewStore(client, "my-bucket", "models/")
package minio
