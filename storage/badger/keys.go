package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/enrichit/core"
)

// Key prefixes for different data types
const (
	documentPrefix    = "endoc"
	documentPubPrefix = "endocp"
	jobPrefix         = "enjob"
	jobActivePrefix   = "enjoba"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	prefix := documentPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeDocumentPubKey generates a composite key for the published-date index.
// Format: prefix:timestampMicros:id, BigEndian so lexicographic order is
// chronological.
func makeDocumentPubKey(unixMicro int64, id core.ID) []byte {
	prefix := documentPubPrefix + ":"
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(unixMicro))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeJobKey generates a key for a batch job by its internal ID.
func makeJobKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobPrefix, id))
}

// makeJobActiveKey generates the active-jobs index key for a job.
// The entry exists while the job is in a non-terminal state.
func makeJobActiveKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobActivePrefix, id))
}
