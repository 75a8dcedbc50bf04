package store

import (
	"encoding/hex"

	"github.com/minio/highwayhash"
)

// fingerprintKey is the fixed 32-byte HighwayHash key.
var fingerprintKey = []byte("arbor/snapshot/fingerprint/key01")

// Fingerprint returns a hex content hash of data. Files whose fingerprint
// matches the stored one are unchanged since the last snapshot.
func Fingerprint(data []byte) string {
	sum := highwayhash.Sum(data, fingerprintKey)
	return hex.EncodeToString(sum[:])
}
