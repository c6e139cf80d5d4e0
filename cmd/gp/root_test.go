package main

import "testing"

func TestParseRef(t *testing.T) {
	cases := []struct {
		ref                      string
		namespace, name, version string
		wantErr                  bool
	}{
		{ref: "@team/deploy", namespace: "@team", name: "deploy"},
		{ref: "@team/deploy:1.0.0", namespace: "@team", name: "deploy", version: "1.0.0"},
		{ref: "@team/deploy:2.0.0-rc.1", namespace: "@team", name: "deploy", version: "2.0.0-rc.1"},
		{ref: "team/deploy", wantErr: true},
		{ref: "@team", wantErr: true},
		{ref: "@team/", wantErr: true},
	}
	for _, tc := range cases {
		namespace, name, version, err := parseRef(tc.ref)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseRef(%q): expected error", tc.ref)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRef(%q): %v", tc.ref, err)
			continue
		}
		if namespace != tc.namespace || name != tc.name || version != tc.version {
			t.Errorf("parseRef(%q) = (%q, %q, %q), want (%q, %q, %q)",
				tc.ref, namespace, name, version, tc.namespace, tc.name, tc.version)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q, want unchanged", got)
	}
	if got := truncate("a longer description here", 10); got != "a longe..." {
		t.Errorf("truncate = %q", got)
	}
	if len(truncate("abcdef", 3)) != 3 {
		t.Error("truncate below ellipsis width must still cap length")
	}
}
