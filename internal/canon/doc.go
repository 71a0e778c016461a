// Package canon provides the canonical JSON encoding used wherever the
// simulator needs byte-stable output: cursor tokens, evaluation-data
// comparison keys, data versions and golden tick snapshots.
//
// Key design constraints:
//   - Object keys sorted by UTF-16 code units (RFC 8785)
//   - Strings NFC normalized, no HTML escaping
//   - No floats and no null; numbers are integers
//
// canon imports nothing internal.
package canon
