package memory

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/xiaot623/gogo/assistant/internal/textutil"
)

// DedupKey identifies the claim a fact makes: two facts with the same
// normalized entity and predicate compete for the same slot.
func DedupKey(entity, predicate string) string {
	sum := sha256.Sum256([]byte(textutil.Normalize(entity) + "\x1f" + textutil.Normalize(predicate)))
	return hex.EncodeToString(sum[:])[:16]
}
