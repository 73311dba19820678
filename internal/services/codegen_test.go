package services

import "testing"

func TestGenerateCode_FormatAndSpread(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		c := GenerateCode()
		if !ValidCodeFormat(c) {
			t.Fatalf("bad code %q", c)
		}
		seen[c] = struct{}{}
	}
	// 500 draws from a million values; a handful of collisions at most.
	if len(seen) < 490 {
		t.Fatalf("suspiciously low spread: %d distinct of 500", len(seen))
	}
}

func TestValidCodeFormat(t *testing.T) {
	cases := map[string]bool{
		"000000":  true,
		"482913":  true,
		"12345":   false,
		"1234567": false,
		"12a456":  false,
		" 12345":  false,
		"１２３４５６": false, // full-width digits
		"":        false,
	}
	for in, want := range cases {
		if got := ValidCodeFormat(in); got != want {
			t.Errorf("ValidCodeFormat(%q) = %v, want %v", in, got, want)
		}
	}
}
