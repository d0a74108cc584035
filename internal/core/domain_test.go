package core

import (
	"errors"
	"testing"
)

func TestCollectionDomain(t *testing.T) {
	cases := []struct {
		col  Collection
		want Domain
	}{
		{"expenses", DomainExpenses},
		{"goals/G1/contributions", DomainGoals},
		{"tags", DomainTags},
	}
	for _, tc := range cases {
		if got := tc.col.Domain(); got != tc.want {
			t.Errorf("Domain(%q) = %q, want %q", tc.col, got, tc.want)
		}
	}
}

func TestCollectionValidate(t *testing.T) {
	cases := []struct {
		name    string
		col     Collection
		wantErr error
	}{
		{"simple domain", "expenses", nil},
		{"nested subcollection", "goals/G1/contributions", nil},
		{"empty", "", ErrEmptyCollection},
		{"even segments", "goals/G1", ErrInvalidCollection},
		{"empty segment", "goals//contributions", ErrInvalidCollection},
		{"unknown root", "unknown", ErrUnknownDomain},
		{"unknown nested root", "unknown/X/items", ErrUnknownDomain},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.col.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate(%q) = %v, want %v", tc.col, err, tc.wantErr)
			}
		})
	}
}

func TestDomainsCoverAllKnownDomains(t *testing.T) {
	all := Domains()
	if len(all) != 8 {
		t.Fatalf("Domains() returned %d entries, want 8", len(all))
	}
	for _, d := range all {
		if !d.IsValid() {
			t.Errorf("domain %q reported invalid", d)
		}
	}
	if Domain("expired").IsValid() {
		t.Error("unknown domain reported valid")
	}
}
