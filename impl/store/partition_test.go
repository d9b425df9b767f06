package store

import (
	"testing"
	"time"
)

func TestPartitionNaming(t *testing.T) {
	type testcase struct {
		t     time.Time
		name  string
		start time.Time
	}
	testcases := []testcase{
		{
			t:     time.Date(2024, 12, 31, 15, 4, 5, 0, time.UTC),
			name:  "manifest_layers_1_2025",
			start: time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			t:     time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
			name:  "manifest_layers_53_2020",
			start: time.Date(2020, 12, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			// Sunday night is still the week that started the previous Monday
			t:     time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC),
			name:  "manifest_layers_10_2024",
			start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			t:     time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
			name:  "manifest_layers_11_2024",
			start: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range testcases {
		p := PartitionFor(tc.t)
		if p.Name != tc.name {
			t.Errorf("%s: expected %s, got %s", tc.t, tc.name, p.Name)
		}
		if !p.Start.Equal(tc.start) || !p.End.Equal(tc.start.AddDate(0, 0, 7)) {
			t.Errorf("%s: unexpected range %s - %s", tc.t, p.Start, p.End)
		}
		if !p.Contains(tc.t) {
			t.Errorf("%s: partition %s does not contain its own time", tc.t, p.Name)
		}
		if p.Contains(p.End) {
			t.Errorf("%s: partition end must be exclusive", p.Name)
		}
	}
}

func TestPartitionWindow(t *testing.T) {
	now := time.Date(2024, 11, 20, 12, 0, 0, 0, time.UTC)
	parts := partitionWindow(now, 12)
	if len(parts) != 13 {
		t.Fatalf("expected 13 partitions, got %d", len(parts))
	}
	if !parts[0].Contains(now) {
		t.Fatal("first partition must cover now")
	}
	seen := map[string]bool{}
	for i, p := range parts {
		if seen[p.Name] {
			t.Fatalf("duplicate partition %s", p.Name)
		}
		seen[p.Name] = true
		if i > 0 && !p.Start.Equal(parts[i-1].End) {
			t.Fatalf("gap between %s and %s", parts[i-1].Name, p.Name)
		}
	}
	if parts[12].Name != "manifest_layers_7_2025" {
		t.Fatalf("unexpected last partition %s", parts[12].Name)
	}
	if len(partitionWindow(now, -1)) != 1 {
		t.Fatal("negative horizon should still yield the current week")
	}
}
