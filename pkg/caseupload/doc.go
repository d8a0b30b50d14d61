// Package caseupload is the upload core of the case-management system.
//
// Uploaded files pass through a two-phase lifecycle: a validated upload
// writes the bytes to an object store and stages a draft record scoped to
// the uploading session, a later commit promotes every draft in the scope
// into permanent case files in one transaction, and an explicit delete
// abandons a single draft. Content validation (byte-signature sniffing,
// spoofing defense, encryption detection) lives in the validate
// subpackage; persistence and blob storage are pluggable through the
// Repository and BlobStore interfaces.
package caseupload
