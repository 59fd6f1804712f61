package feed

import (
	"fmt"
	"io"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/printforge/printflow_backend/utils"
)

// Marketplace feed ingestion: one xlsx file per reconciliation batch, two
// logical columns found by header aliases, duplicates merged by normalized
// article with quantity aggregation.

var articleHeaderAliases = []string{
	"артикул товара",
	"артикул",
	"article",
	"sku",
}

var ordersHeaderAliases = []string{
	"заказов, шт.",
	"заказов",
	"orders",
	"кол-во заказов",
}

// article values pandas-style exports emit for missing cells
var emptyArticleValues = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
}

// FeedRow is one deduplicated marketplace article. Transient, never persisted.
type FeedRow struct {
	ArticleRaw    string `json:"article_raw"`
	ArticleNorm   string `json:"article_norm"`
	Orders        int    `json:"orders"`
	SourceRow     int    `json:"source_row"`
	MergedFrom    []int  `json:"merged_from,omitempty"`
	HasDuplicates bool   `json:"has_duplicates"`
}

type ParseResult struct {
	Rows        []FeedRow `json:"rows"`
	TotalRows   int       `json:"total_rows"`
	ParseErrors int       `json:"parse_errors"`
}

// HeaderError rejects a whole batch when the two columns cannot be located.
type HeaderError struct {
	HeadersFound []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("feed header not recognized; headers found: %s", strings.Join(e.HeadersFound, ", "))
}

const normalizeCacheSize = 2048

// ParseFeed reads an xlsx marketplace export and returns deduplicated rows
// sorted by descending order count. Per-row parse problems are counted but do
// not abort the batch; an unrecognized header does.
func ParseFeed(r io.Reader) (*ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("feed file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet %q: %v", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, &HeaderError{}
	}

	articleCol, ordersCol, err := locateColumns(rows[0])
	if err != nil {
		return nil, err
	}

	// Per-batch cache; correctness does not depend on it.
	cache, _ := lru.New[string, string](normalizeCacheSize)
	normalize := func(s string) string {
		if v, ok := cache.Get(s); ok {
			return v
		}
		v := utils.NormalizeArticle(s)
		cache.Add(s, v)
		return v
	}

	result := &ParseResult{}
	byArticle := map[string]int{}
	var out []FeedRow

	for idx, row := range rows[1:] {
		rowNumber := idx + 2 // 1-based, after the header
		result.TotalRows++

		rawArticle := cellAt(row, articleCol)
		norm := normalize(rawArticle)
		if emptyArticleValues[strings.ToLower(norm)] {
			continue
		}

		orders, ok := coerceOrders(cellAt(row, ordersCol))
		if !ok {
			result.ParseErrors++
		}

		if pos, seen := byArticle[norm]; seen {
			out[pos].Orders += orders
			out[pos].MergedFrom = append(out[pos].MergedFrom, rowNumber)
			out[pos].HasDuplicates = true
			continue
		}
		byArticle[norm] = len(out)
		out = append(out, FeedRow{
			ArticleRaw:  rawArticle,
			ArticleNorm: norm,
			Orders:      orders,
			SourceRow:   rowNumber,
		})
	}

	// Descending by orders; stable so first-occurrence order breaks ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Orders > out[j].Orders
	})

	result.Rows = out
	return result, nil
}

func locateColumns(header []string) (int, int, error) {
	articleCol := matchHeader(header, articleHeaderAliases)
	ordersCol := matchHeader(header, ordersHeaderAliases)
	if articleCol < 0 || ordersCol < 0 {
		found := make([]string, 0, len(header))
		for _, h := range header {
			if strings.TrimSpace(h) != "" {
				found = append(found, strings.TrimSpace(h))
			}
		}
		return 0, 0, &HeaderError{HeadersFound: found}
	}
	return articleCol, ordersCol, nil
}

// matchHeader walks the alias list in order so the most specific alias wins.
func matchHeader(header []string, aliases []string) int {
	for _, alias := range aliases {
		for col, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return col
			}
		}
	}
	return -1
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// coerceOrders turns a cell into a non-negative integer. Negative values
// clamp to 0; non-numeric values count as a parse error and yield 0.
func coerceOrders(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if v.IsNegative() {
		return 0, true
	}
	return int(v.IntPart()), true
}
