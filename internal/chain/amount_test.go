package chain

import "testing"

func TestParseAmount_ScalesToSmallestUnit(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1", "1000000"},
		{"10.00", "10000000"},
		{"0.5", "500000"},
		{"2.123456", "2123456"},
		{".25", "250000"},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in, 6)
		if err != nil {
			t.Fatalf("ParseAmount(%q) failed: %v", c.in, err)
		}
		if got.String() != c.want {
			t.Fatalf("ParseAmount(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseAmount_RejectsInvalidInput(t *testing.T) {
	for _, in := range []string{"", "0", "0.0", "-1", "+1", "abc", "1.2.3", "1.1234567", "1,5"} {
		if _, err := ParseAmount(in, 6); err == nil {
			t.Fatalf("ParseAmount(%q) should have failed", in)
		}
	}
}

func TestValidAddress(t *testing.T) {
	if !ValidAddress("0x1111111111111111111111111111111111111111") {
		t.Fatal("well-formed address rejected")
	}
	for _, in := range []string{"", "0x123", "1111111111111111111111111111111111111111x", "not-an-address"} {
		if ValidAddress(in) {
			t.Fatalf("malformed address %q accepted", in)
		}
	}
}
