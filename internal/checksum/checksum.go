// Package checksum derives the version tags used for optimistic concurrency
// on notes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/starford/stickies/internal/models"
)

// Note returns the tag of a note: the first 16 bytes of the SHA-256 of its
// compact JSON encoding, hex encoded. Any change to id, text spans, title
// or language changes the tag.
func Note(n models.Note) string {
	data, err := json.Marshal(n)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:16])
}

// Match reports whether an If-Match style value names the note's current
// tag. Surrounding quotes and a weak prefix are ignored; an empty value
// always matches.
func Match(n models.Note, tag string) bool {
	if tag == "" || tag == "*" {
		return true
	}
	if len(tag) > 2 && tag[:2] == "W/" {
		tag = tag[2:]
	}
	if len(tag) >= 2 && tag[0] == '"' && tag[len(tag)-1] == '"' {
		tag = tag[1 : len(tag)-1]
	}
	return tag == Note(n)
}
