package vectorstore

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// PointID deterministically derives a 64-bit Qdrant point ID from an
// entity's own ID and its owning repository, so re-indexing the same
// entity always upserts in place instead of accumulating duplicates.
// Adapts the content-hash-then-truncate scheme idgen uses for issue
// IDs, but truncates to a uint64 since Qdrant's numeric point IDs are
// plain 64-bit integers rather than base36 text.
func PointID(entityID, repoID string) uint64 {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", repoID, entityID)))
	return binary.BigEndian.Uint64(sum[:8])
}
