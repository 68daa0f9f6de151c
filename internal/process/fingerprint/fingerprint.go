// Package fingerprint computes the deduplication identity of a raw signal.
//
// The digest is deterministic over (source, kind, content, subject) and
// deliberately excludes tenant and timestamp, so the same competitor event
// reported twice collapses to one record regardless of when it was seen.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rivalscope/intel-pipeline/internal/core/domain"
)

// fieldSeparator keeps adjacent fields from producing ambiguous digests
// ("ab"+"c" vs "a"+"bc").
const fieldSeparator = "\n"

// Compute returns the hex-encoded digest identifying the logical event
// behind item. Pure and deterministic; empty content yields a distinct but
// valid fingerprint rather than an error.
func Compute(item domain.RawItem) string {
	var sb strings.Builder

	sb.WriteString(string(item.Source))
	sb.WriteString(fieldSeparator)
	sb.WriteString(string(item.Kind))
	sb.WriteString(fieldSeparator)
	sb.WriteString(item.Metadata.SubjectID)
	sb.WriteString(fieldSeparator)
	sb.WriteString(item.Content)

	sum := sha256.Sum256([]byte(sb.String()))

	return hex.EncodeToString(sum[:])
}
