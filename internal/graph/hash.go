package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashPayload computes the canonical 16-hex-char digest used for state
// deduplication. Strings are hashed directly; structured payloads go through
// JSON serialization, which is key-order independent for maps, so logically
// identical payloads always collide.
func HashPayload(payload any) string {
	var content []byte
	switch v := payload.(type) {
	case string:
		content = []byte(v)
	case []byte:
		content = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			// Unserializable payloads fall back to their Go representation.
			data = fmt.Appendf(nil, "%#v", v)
		}
		content = data
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:16]
}
