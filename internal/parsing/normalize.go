package parsing

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/cv-optimizer/internal/types"
)

var (
	termAliases   = []string{"term", "slowo", "keyword", "word", "name"}
	weightAliases = []string{"weight", "waga", "priority"}
)

// Normalize coerces a decoded model answer into a keyword set. It accepts
// English and Polish category keys in any letter case, bare strings in place
// of entries, and weights given as numbers or numeric strings.
func Normalize(obj map[string]any) types.KeywordCategorySet {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := make(map[types.Category][]types.KeywordEntry, len(types.Categories))
	for _, c := range types.Categories {
		value, ok := lookupCategory(obj, keys, c)
		if !ok {
			continue
		}
		m[c] = normalizeEntries(value)
	}
	return types.NewKeywordCategorySet(m)
}

func lookupCategory(obj map[string]any, keys []string, c types.Category) (any, bool) {
	names := make([]string, 0, len(types.WireSchemas))
	for _, w := range types.WireSchemas {
		names = append(names, w.Key(c))
	}
	names = append(names, string(c))

	for _, name := range names {
		if v, ok := obj[name]; ok {
			return v, true
		}
	}
	for _, name := range names {
		for _, k := range keys {
			if strings.EqualFold(strings.TrimSpace(k), name) {
				return obj[k], true
			}
		}
	}
	return nil, false
}

func normalizeEntries(value any) []types.KeywordEntry {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		entries := make([]types.KeywordEntry, 0, len(v))
		for _, item := range v {
			if entry, ok := normalizeEntry(item); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	default:
		if entry, ok := normalizeEntry(v); ok {
			return []types.KeywordEntry{entry}
		}
		return nil
	}
}

func normalizeEntry(item any) (types.KeywordEntry, bool) {
	switch v := item.(type) {
	case string:
		term := strings.TrimSpace(v)
		if term == "" {
			return types.KeywordEntry{}, false
		}
		return types.KeywordEntry{Term: term, Weight: types.DefaultWeight}, true
	case map[string]any:
		term, ok := lookupField(v, termAliases).(string)
		term = strings.TrimSpace(term)
		if !ok || term == "" {
			return types.KeywordEntry{}, false
		}
		return types.KeywordEntry{Term: term, Weight: coerceWeight(lookupField(v, weightAliases))}, true
	default:
		return types.KeywordEntry{}, false
	}
}

func lookupField(obj map[string]any, aliases []string) any {
	for _, alias := range aliases {
		if v, ok := obj[alias]; ok {
			return v
		}
	}
	for _, alias := range aliases {
		for k, v := range obj {
			if strings.EqualFold(k, alias) {
				return v
			}
		}
	}
	return nil
}

// coerceWeight rounds numeric weights into [MinWeight, MaxWeight]. Anything
// that is not a number becomes DefaultWeight.
func coerceWeight(value any) int {
	var f float64
	switch v := value.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return types.DefaultWeight
		}
		f = parsed
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return types.DefaultWeight
		}
		f = parsed
	default:
		return types.DefaultWeight
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return types.DefaultWeight
	}
	w := int(math.Round(f))
	if w < types.MinWeight {
		return types.MinWeight
	}
	if w > types.MaxWeight {
		return types.MaxWeight
	}
	return w
}
