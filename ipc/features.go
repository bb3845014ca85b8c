package ipc

import "strings"

// FeatureFlag is a member of the closed vocabulary of known feature tags
// plus an Unknown escape hatch for forward compatibility.
type FeatureFlag struct {
	known   string // "" if Unknown
	unknown string // set only when known == ""
}

func Known(tag string) FeatureFlag  { return FeatureFlag{known: tag} }
func Unknown(tag string) FeatureFlag { return FeatureFlag{unknown: tag} }

func (f FeatureFlag) IsUnknown() bool { return f.known == "" }

func (f FeatureFlag) String() string {
	if f.IsUnknown() {
		return f.unknown
	}
	return f.known
}

// knownFeatures is the closed vocabulary this client recognizes.
var knownFeatures = map[string]bool{
	"assets.basic":    true,
	"prefabs.basic":   true,
	"build.min":       true,
	"build.full":      true,
	"events.log":      true,
	"events.full":     true,
	"ops.progress":    true,
	"assets.advanced": true,
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func parseFlag(tag string) FeatureFlag {
	n := normalize(tag)
	if knownFeatures[n] {
		return Known(n)
	}
	return Unknown(n)
}

// FeatureSet is a set over FeatureFlag, compared by intersection.
type FeatureSet struct {
	members map[string]FeatureFlag
}

func NewFeatureSet(flags ...FeatureFlag) FeatureSet {
	fs := FeatureSet{members: make(map[string]FeatureFlag, len(flags))}
	for _, f := range flags {
		fs.members[f.String()] = f
	}
	return fs
}

// FromStrings parses raw tags from the peer. Per SPEC_FULL.md §3, this
// filters out Unknown members for the returned set used in negotiation —
// mirroring original_source/server/src/ipc/features.rs — while the caller
// is expected to retain the raw strings separately for diagnostics (see
// ConnectionState.NegotiatedFeaturesRaw).
func FromStrings(tags []string) FeatureSet {
	fs := FeatureSet{members: make(map[string]FeatureFlag)}
	for _, t := range tags {
		f := parseFlag(t)
		if f.IsUnknown() {
			continue
		}
		fs.members[f.String()] = f
	}
	return fs
}

// SupportedFeatures is this client's fixed declared vocabulary, sent during
// handshake.
func SupportedFeatures() FeatureSet {
	fs := FeatureSet{members: make(map[string]FeatureFlag, len(knownFeatures))}
	for tag := range knownFeatures {
		fs.members[tag] = Known(tag)
	}
	return fs
}

// Intersect returns the set-intersection of two FeatureSets, per spec.md
// §3's "comparison is set-intersection" rule.
func (fs FeatureSet) Intersect(other FeatureSet) FeatureSet {
	out := FeatureSet{members: make(map[string]FeatureFlag)}
	for tag, f := range fs.members {
		if _, ok := other.members[tag]; ok {
			out.members[tag] = f
		}
	}
	return out
}

func (fs FeatureSet) Contains(tag string) bool {
	_, ok := fs.members[normalize(tag)]
	return ok
}

func (fs FeatureSet) Tags() []string {
	out := make([]string, 0, len(fs.members))
	for tag := range fs.members {
		out = append(out, tag)
	}
	return out
}

func (fs FeatureSet) Len() int { return len(fs.members) }
