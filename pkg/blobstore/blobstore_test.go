package blobstore

import "testing"

func TestSplitLocation(t *testing.T) {
	cases := []struct {
		location   string
		wantBucket string
		wantKey    string
		wantOK     bool
	}{
		{"docs/raw/doc-1.txt", "docs", "raw/doc-1.txt", true},
		{"docs/", "", "", false},
		{"docs", "", "", false},
		{"", "", "", false},
	}

	for _, tc := range cases {
		bucket, key, ok := splitLocation(tc.location)
		if ok != tc.wantOK {
			t.Fatalf("splitLocation(%q) ok = %v, want %v", tc.location, ok, tc.wantOK)
		}
		if ok && (bucket != tc.wantBucket || key != tc.wantKey) {
			t.Fatalf("splitLocation(%q) = (%q, %q), want (%q, %q)", tc.location, bucket, key, tc.wantBucket, tc.wantKey)
		}
	}
}
