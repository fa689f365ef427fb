package notify

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// dedupKey identifies one notification for one recipient about one version
// of one source record. Redelivery of the same event yields the same key and
// the unique index rejects the copy.
func dedupKey(sourceID, kind, version, recipient string) string {
	sum := blake2b.Sum256([]byte(strings.Join([]string{sourceID, kind, version, recipient}, "\x00")))
	return hex.EncodeToString(sum[:])
}

func versionOf(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}
