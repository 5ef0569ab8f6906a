// Package shape turns route geometry of unknown layout into sequenced
// pattern groups ready to be drawn as polylines.
//
// Detection runs in priority order: GeoJSON-like geometry (one or many
// coordinate chains), records carrying GTFS shape_pt_* fields, and finally
// records whose lat/lon/sequence/pattern fields are guessed from their names.
// Anything else normalizes to an empty result.
package shape

import (
	"math"
	"sort"
	"strconv"

	"transit-tracker/internal/transit"
)

// ComplexityThreshold is the chain count above which each chain of a
// multi-chain geometry is drawn as its own pattern.
const ComplexityThreshold = 5

// SegmentPrefix starts the key of each pattern split out of a complex
// geometry; the chain index follows.
const SegmentPrefix = "segment-"

type point struct {
	lat, lon float64
	valid    bool
	seq      int
	hasSeq   bool
}

// Normalize groups the payload's points by pattern key. Groups with fewer
// than two valid points are dropped. The payload is never modified.
func Normalize(payload any) transit.Patterns {
	root := unwrap(payload)
	if chains := geometryChains(root); len(chains) > 0 {
		return finalize(groupChains(chains))
	}
	recs := records(root)
	if len(recs) == 0 {
		return transit.Patterns{}
	}
	for _, detect := range fieldDetectors {
		if fm, ok := detect(recs[0]); ok {
			return finalize(groupRecords(recs, fm))
		}
	}
	return transit.Patterns{}
}

// unwrap descends through single-key envelopes ({"data": [...]},
// <response><shape>...</shape></response>) and FeatureCollections.
func unwrap(v any) any {
	for depth := 0; depth < 4; depth++ {
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		if isGeometry(m) || geometryField(m) != nil {
			return v
		}
		if f, ok := m["features"].([]any); ok {
			return f
		}
		if len(m) != 1 {
			return v
		}
		descended := false
		for _, inner := range m {
			switch inner.(type) {
			case map[string]any, []any:
				v = inner
				descended = true
			}
		}
		if !descended {
			return v
		}
	}
	return v
}

func isGeometry(m map[string]any) bool {
	_, ok := m["coordinates"].([]any)
	return ok
}

var geometryKeys = []string{"the_geom", "geometry", "geom"}

func geometryField(m map[string]any) map[string]any {
	for _, k := range geometryKeys {
		if g, ok := m[k].(map[string]any); ok && isGeometry(g) {
			return g
		}
	}
	return nil
}

// geometryChains collects coordinate chains from a bare geometry, a record
// holding one, a list of such records, or a bare [[lon,lat],...] list.
func geometryChains(root any) [][]any {
	switch v := root.(type) {
	case map[string]any:
		if isGeometry(v) {
			return chainsOf(v)
		}
		if g := geometryField(v); g != nil {
			return chainsOf(g)
		}
	case []any:
		if isCoordChain(v) {
			return [][]any{v}
		}
		var chains [][]any
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if isGeometry(m) {
				chains = append(chains, chainsOf(m)...)
			} else if g := geometryField(m); g != nil {
				chains = append(chains, chainsOf(g)...)
			}
		}
		return chains
	}
	return nil
}

func chainsOf(g map[string]any) [][]any {
	coords, _ := g["coordinates"].([]any)
	if len(coords) == 0 {
		return nil
	}
	typ, _ := g["type"].(string)
	switch typ {
	case "LineString":
		return [][]any{coords}
	case "MultiLineString":
		return nestedChains(coords)
	}
	if isCoordChain(coords) {
		return [][]any{coords}
	}
	return nestedChains(coords)
}

func nestedChains(coords []any) [][]any {
	chains := make([][]any, 0, len(coords))
	for _, c := range coords {
		if chain, ok := c.([]any); ok && len(chain) > 0 {
			chains = append(chains, chain)
		}
	}
	return chains
}

func isCoordChain(a []any) bool {
	if len(a) == 0 {
		return false
	}
	pair, ok := a[0].([]any)
	if !ok || len(pair) < 2 {
		return false
	}
	_, okX := toFloat(pair[0])
	_, okY := toFloat(pair[1])
	return okX && okY
}

// groupChains keeps a running sequence across chains so that merged chains
// stay in chain order.
func groupChains(chains [][]any) map[string][]point {
	groups := make(map[string][]point)
	split := len(chains) > ComplexityThreshold
	seq := 0
	for i, chain := range chains {
		key := transit.PatternRoute
		if split {
			key = SegmentPrefix + strconv.Itoa(i)
		}
		for _, c := range chain {
			p := point{seq: seq, hasSeq: true}
			seq++
			if pair, ok := c.([]any); ok && len(pair) >= 2 {
				// GeoJSON order is [lon, lat]
				lon, okLon := toFloat(pair[0])
				lat, okLat := toFloat(pair[1])
				p.lat, p.lon, p.valid = lat, lon, okLat && okLon
			}
			groups[key] = append(groups[key], p)
		}
	}
	return groups
}

func records(root any) []map[string]any {
	switch v := root.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{v}
	}
	return nil
}

func groupRecords(recs []map[string]any, fm fieldMap) map[string][]point {
	groups := make(map[string][]point)
	for _, r := range recs {
		key := transit.PatternRoute
		if fm.pattern != "" {
			if s := patternValue(r[fm.pattern]); s != "" {
				key = s
			}
		}
		lat, okLat := toFloat(r[fm.lat])
		lon, okLon := toFloat(r[fm.lon])
		p := point{lat: lat, lon: lon, valid: okLat && okLon}
		if fm.seq != "" {
			if s, ok := toFloat(r[fm.seq]); ok {
				p.seq = int(s)
			}
			p.hasSeq = true
		}
		groups[key] = append(groups[key], p)
	}
	return groups
}

func finalize(groups map[string][]point) transit.Patterns {
	out := make(transit.Patterns, len(groups))
	for key, pts := range groups {
		if len(pts) > 0 && pts[0].hasSeq {
			sorted := append([]point(nil), pts...)
			sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].seq < sorted[j].seq })
			pts = sorted
		}
		valid := make([]transit.ShapePoint, 0, len(pts))
		for _, p := range pts {
			if !p.valid || !finite(p.lat) || !finite(p.lon) {
				continue
			}
			valid = append(valid, transit.ShapePoint{Lat: p.lat, Lon: p.lon, Sequence: p.seq, Pattern: key})
		}
		if len(valid) < 2 {
			continue
		}
		out[key] = valid
	}
	return out
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
