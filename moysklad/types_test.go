package moysklad

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestMetaID(t *testing.T) {
	cases := []struct {
		name string
		href string
		want string
	}{
		{"plain", "https://api.example.com/api/remap/1.2/entity/product/abc-123", "abc-123"},
		{"trailing slash", "https://api.example.com/entity/store/def-456/", "def-456"},
		{"query string", "https://api.example.com/entity/product/ghi-789?expand=attributes", "ghi-789"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Meta{Href: tc.href}
			if got := m.ID(); got != tc.want {
				t.Fatalf("ID(%q) = %q, want %q", tc.href, got, tc.want)
			}
		})
	}
}

func TestExtractAttributeString(t *testing.T) {
	attrs := []Attribute{
		{Name: "Цвет", Type: "string", Value: json.RawMessage(`"Красный"`)},
		{Name: "Material", Type: "customentity", Value: json.RawMessage(`{"meta":{"href":"x"},"name":"PETG"}`)},
		{Name: "Weight", Type: "long", Value: json.RawMessage(`150`)},
		{Name: "Empty", Type: "string"},
	}

	if got := ExtractAttributeString(attrs, "Цвет"); got != "Красный" {
		t.Fatalf("string attribute = %q, want %q", got, "Красный")
	}
	if got := ExtractAttributeString(attrs, "  цвет "); got != "Красный" {
		t.Fatalf("case-insensitive trimmed lookup = %q, want %q", got, "Красный")
	}
	if got := ExtractAttributeString(attrs, "Material"); got != "PETG" {
		t.Fatalf("reference attribute = %q, want %q", got, "PETG")
	}
	if got := ExtractAttributeString(attrs, "Weight"); got != "" {
		t.Fatalf("numeric attribute = %q, want empty", got)
	}
	if got := ExtractAttributeString(attrs, "Empty"); got != "" {
		t.Fatalf("empty value = %q, want empty", got)
	}
	if got := ExtractAttributeString(attrs, "Missing"); got != "" {
		t.Fatalf("missing attribute = %q, want empty", got)
	}
}

func TestDecimalFromNumber(t *testing.T) {
	if got := decimalFromNumber(json.Number("12.5")); !got.Equal(mustDecimal(t, "12.5")) {
		t.Fatalf("decimalFromNumber(12.5) = %s", got)
	}
	if got := decimalFromNumber(json.Number("")); !got.IsZero() {
		t.Fatalf("empty number should be zero, got %s", got)
	}
	if got := decimalFromNumber(json.Number("not-a-number")); !got.IsZero() {
		t.Fatalf("garbage number should be zero, got %s", got)
	}
}
