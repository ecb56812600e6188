// Package storage defines a uniform contract for reading, writing, listing,
// copying, and deleting named byte blobs ("objects") against interchangeable
// backends.
//
// Three backends implement the contract:
//
//   - s3: Amazon S3 (or any API-compatible service) via aws-sdk-go-v2,
//     including a multipart upload orchestrator for large objects.
//   - filestore: a local filesystem or mounted network share, with
//     transactional temp-file writes for atomicity.
//   - miniostore: S3-compatible services via the MinIO client, which handles
//     multipart transfers internally.
//
// All backends normalize their native failure signals into the closed error
// taxonomy of the errors subpackage, so callers handle one small set of error
// kinds regardless of which backend is configured. The config subpackage
// selects and constructs a backend from file- or environment-based
// configuration.
package storage
