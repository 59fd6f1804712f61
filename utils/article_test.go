package utils

import "testing"

func TestNormalizeArticle(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"", ""},
		{"  423-51412  ", "423-51412"},
		{"423–51412", "423-51412"},
		{"423—51412", "423-51412"},
		{"423−51412", "423-51412"},
		{"423‒51412", "423-51412"},
		{"ABC 123", "ABC123"},
		{"ABC​123", "ABC123"},
		{"a  b\t\tc", "a b c"},
		{"Кружка-М 250", "Кружка-М 250"},
		{"xy", "xy"},
	}
	for _, tc := range cases {
		got := NormalizeArticle(tc.in)
		if got != tc.expected {
			t.Fatalf("NormalizeArticle(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestNormalizeArticle_Idempotent(t *testing.T) {
	inputs := []string{
		"  423–51412 ", "ABC ⁠123", "a — b", "Ваза‒Х", "",
	}
	for _, in := range inputs {
		once := NormalizeArticle(in)
		twice := NormalizeArticle(once)
		if once != twice {
			t.Fatalf("NormalizeArticle not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizeArticle_DashEquivalence(t *testing.T) {
	dashes := []string{"-", "–", "—", "−", "‒"}
	want := NormalizeArticle("X-Y")
	for _, d := range dashes {
		if got := NormalizeArticle("X" + d + "Y"); got != want {
			t.Fatalf("dash %q normalized to %q, want %q", d, got, want)
		}
	}
}

func TestNormalizeArticleFold(t *testing.T) {
	if got := NormalizeArticleFold("  ABC–12 "); got != "abc-12" {
		t.Fatalf("NormalizeArticleFold expected %q, got %q", "abc-12", got)
	}
}
