package variables

import "strings"

// Walk resolves a dotted path inside a record of nested maps. A key that
// contains the full dotted path wins over descending into sub-maps.
func Walk(record map[string]any, path string) (any, bool, error) {
	if v, ok := record[path]; ok {
		return v, true, nil
	}
	var cur any = record
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		cur, ok = m[part]
		if !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}
