package shape

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// fieldMap names the record fields holding each point attribute. Empty seq
// or pattern means the records do not carry one.
type fieldMap struct {
	lat, lon, seq, pattern string
}

// fieldDetectors are tried in order against a sample record.
var fieldDetectors = []func(map[string]any) (fieldMap, bool){
	gtfsFields,
	sniffFields,
}

// gtfsFields matches records already in GTFS shapes.txt form.
func gtfsFields(r map[string]any) (fieldMap, bool) {
	if !present(r["shape_pt_lat"]) || !present(r["shape_pt_lon"]) {
		return fieldMap{}, false
	}
	fm := fieldMap{lat: "shape_pt_lat", lon: "shape_pt_lon", pattern: "pattern"}
	if _, ok := r["shape_pt_sequence"]; ok {
		fm.seq = "shape_pt_sequence"
	}
	return fm, true
}

var (
	latNames     = []string{"lat", "latitude"}
	lonNames     = []string{"lon", "lng", "long", "longitude"}
	seqNames     = []string{"seq", "sequence", "order"}
	patternNames = []string{"pattern", "dir", "direction"}
)

// sniffFields guesses fields by name. A lat/lon pair is required; sequence
// and pattern are optional.
func sniffFields(r map[string]any) (fieldMap, bool) {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	numeric := func(v any) bool { _, ok := toFloat(v); return ok }
	text := func(v any) bool { s, ok := v.(string); return ok && s != "" }

	fm := fieldMap{}
	fm.lat = bestField(r, keys, latNames, numeric, "")
	fm.lon = bestField(r, keys, lonNames, numeric, fm.lat)
	if fm.lat == "" || fm.lon == "" {
		return fieldMap{}, false
	}
	fm.seq = bestField(r, keys, seqNames, numeric, "")
	fm.pattern = bestField(r, keys, patternNames, text, "")
	return fm, true
}

// bestField picks the key that most closely matches one of names and whose
// sample value passes accept: an exact name beats a name as a separated part
// of the key, which beats a plain substring.
func bestField(r map[string]any, keys, names []string, accept func(any) bool, exclude string) string {
	best, bestScore := "", 0
	for _, k := range keys {
		if k == exclude {
			continue
		}
		score := matchScore(strings.ToLower(k), names)
		if score <= bestScore || !accept(r[k]) {
			continue
		}
		best, bestScore = k, score
	}
	return best
}

func matchScore(key string, names []string) int {
	score := 0
	parts := strings.FieldsFunc(key, func(c rune) bool { return c == '_' || c == '-' || c == '.' || c == ' ' })
	for _, n := range names {
		switch {
		case key == n:
			return 3
		case contains(parts, n):
			score = max(score, 2)
		case strings.Contains(key, n):
			score = max(score, 1)
		}
	}
	return score
}

func contains(parts []string, s string) bool {
	for _, p := range parts {
		if p == s {
			return true
		}
	}
	return false
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	}
	return true
}

// toFloat accepts JSON numbers and numeric strings; XML bodies decode every
// leaf as a string.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func patternValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
