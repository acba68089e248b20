// Package artifact stores and retrieves the content-addressed blobs
// behind types.Artifact rows. The repository only ever holds a pointer
// (SHA-256 digest plus size); the bytes live in an S3-compatible object
// store reachable through the minio-go client.
package artifact
