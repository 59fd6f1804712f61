package moysklad

import (
	"encoding/json"
	"strings"
)

// Wire shapes for the MoySklad JSON API 1.2. Only the fields the sync reads
// are declared; the rest of each payload rides along as raw JSON.

type Meta struct {
	Href string `json:"href"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

// ID extracts the entity id, the last path segment of the href.
func (m Meta) ID() string {
	href := m.Href
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	href = strings.TrimRight(href, "/")
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		return href[i+1:]
	}
	return href
}

type listEnvelope struct {
	Meta Meta              `json:"meta"`
	Rows []json.RawMessage `json:"rows"`
}

type entityRef struct {
	Meta Meta   `json:"meta"`
	Name string `json:"name"`
}

// Attribute values arrive either as a primitive or as a nested reference
// object; the raw value is kept until extraction pattern-matches it.
type Attribute struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type Warehouse struct {
	Meta Meta   `json:"meta"`
	Name string `json:"name"`
}

type ProductFolder struct {
	Meta Meta   `json:"meta"`
	Name string `json:"name"`
}

type ProductRow struct {
	Meta          Meta        `json:"meta"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Article       string      `json:"article"`
	Code          string      `json:"code"`
	Archived      bool        `json:"archived"`
	ProductFolder *entityRef  `json:"productFolder"`
	Attributes    []Attribute `json:"attributes"`
	Images        *struct {
		Meta Meta `json:"meta"`
	} `json:"images"`
}

type StockRow struct {
	Meta    Meta            `json:"meta"`
	Article string          `json:"article"`
	Stock   json.Number     `json:"stock"`
	Reserve json.Number     `json:"reserve"`
}

type TurnoverRow struct {
	Assortment struct {
		Meta    Meta   `json:"meta"`
		Name    string `json:"name"`
		Article string `json:"article"`
	} `json:"assortment"`
	Outcome struct {
		Quantity json.Number `json:"quantity"`
	} `json:"outcome"`
}

type ImageRow struct {
	Meta         Meta   `json:"meta"`
	Filename     string `json:"filename"`
	DownloadHref struct {
		Href string `json:"href"`
	} `json:"miniature"`
	Download struct {
		Href string `json:"href"`
	} `json:"download"`
}

// ExtractAttributeString finds the attribute whose name equals label
// (case-insensitive, trimmed) and returns its string value. A nested
// reference object contributes its name field; anything that is neither a
// string nor such an object yields the empty string.
func ExtractAttributeString(attrs []Attribute, label string) string {
	label = strings.TrimSpace(label)
	for _, attr := range attrs {
		if !strings.EqualFold(strings.TrimSpace(attr.Name), label) {
			continue
		}
		if len(attr.Value) == 0 {
			return ""
		}
		var s string
		if err := json.Unmarshal(attr.Value, &s); err == nil {
			return s
		}
		var ref struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(attr.Value, &ref); err == nil {
			return ref.Name
		}
		return ""
	}
	return ""
}
