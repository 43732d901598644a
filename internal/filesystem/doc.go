// Package filesystem wraps the file operations used by the scanner and the
// conversion pipeline.
//
// Source folders often live on network shares (NAS exports, synced cloud
// folders mounted over NFS). Stat and Open retry with exponential backoff
// when the kernel reports a stale file handle (ESTALE); any other error is
// returned immediately.
//
// [CopyFileVerified] produces the backup made before an original is deleted:
// the copy is size-checked and removed again if anything goes wrong.
//
// Operations are reported to an optional [Observer] labelled by volume
// ("source", "output"), resolved with a [VolumeResolver].
package filesystem
