package cos

import (
	"strconv"
	"strings"

	"github.com/OneOfOne/xxhash"
)

// FingerprintSeed is mixed into every fingerprint hash so that two
// deployments never collide on cache keys by coincidence.
const FingerprintSeed uint64 = 0x9e3779b97f4a7c15

// Fingerprint hashes an operation kind plus its canonical argument bytes into
// a stable 16-hex-digit cache key. Same inputs always produce the same key;
// this is what backs the response cache's idempotent-operation lookup.
func Fingerprint(opKind string, args []byte) string {
	h := xxhash.New64S(FingerprintSeed)
	h.WriteString(opKind)
	h.Write([]byte{0})
	h.Write(args)
	s := strconv.FormatUint(h.Sum64(), 16)
	return strings.Repeat("0", 16-len(s)) + s
}

// PathHygiene applies the asset-path validation rules: empty-after-trim,
// traversal segments, control characters, required Assets/ prefix, and a
// length cap. Returns the empty string if ok, otherwise the violated rule.
func PathHygiene(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return "path is empty"
	}
	if len(trimmed) > 260 {
		return "path exceeds maximum length"
	}
	norm := strings.ReplaceAll(trimmed, "\\", "/")
	for _, seg := range strings.Split(norm, "/") {
		if seg == ".." {
			return "path contains a traversal segment"
		}
	}
	for _, r := range trimmed {
		if r < 0x20 || r == '<' || r == '>' {
			return "path contains control characters"
		}
	}
	if !strings.HasPrefix(norm, "Assets/") && norm != "Assets" {
		return "path must be rooted at Assets/"
	}
	return ""
}
