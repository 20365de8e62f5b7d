package storage

// Package storage persists named collection snapshots (presence set, mailbox,
// alarm queue) as JSON blobs.
//
// It is best-effort by design: a missing or corrupt blob degrades to the
// caller-supplied default, and a failed save is reported but never fatal.
// Schema is implicit in the default value's shape; there is no versioning.
