package ipc

import "testing"

func TestFeatureSetFiltersUnknown(t *testing.T) {
	fs := FromStrings([]string{"events.log", "  Events.Log  ", "something.future", "assets.basic"})
	if fs.Contains("something.future") {
		t.Fatal("unknown tag should be filtered from the negotiated set")
	}
	if !fs.Contains("events.log") || !fs.Contains("assets.basic") {
		t.Fatal("known tags should survive normalization and filtering")
	}
	if fs.Len() != 2 {
		t.Fatalf("expected 2 known tags, got %d (%v)", fs.Len(), fs.Tags())
	}
}

func TestFeatureSetIntersectIsSubsetOfBoth(t *testing.T) {
	client := SupportedFeatures()
	peer := FromStrings([]string{"events.log", "build.min", "nonsense"})
	negotiated := peer.Intersect(client)

	for _, tag := range negotiated.Tags() {
		if !client.Contains(tag) {
			t.Fatalf("negotiated tag %q not in client_supported", tag)
		}
		if !peer.Contains(tag) {
			t.Fatalf("negotiated tag %q not in peer_accepted", tag)
		}
	}
}
