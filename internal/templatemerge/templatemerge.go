// Package templatemerge recursively merges a user-supplied workload object
// with an administrator-defined template, letting the template enforce
// defaults and policy that the user cannot override.
package templatemerge

// Merge recursively merges a (user-supplied) and b (admin template) into a
// new value. b wins on conflict at every leaf:
//
//   - maps: union of keys, recursively merged at shared keys
//   - slices: concatenation, a's elements followed by b's
//   - scalars and mismatched shapes: b's value replaces a's
//
// Neither a nor b is mutated; merge always returns a fresh value tree.
func Merge(a, b interface{}) interface{} {
	if b == nil {
		return cloneValue(a)
	}
	if a == nil {
		return cloneValue(b)
	}

	aMap, aIsMap := a.(map[string]interface{})
	bMap, bIsMap := b.(map[string]interface{})
	if aIsMap && bIsMap {
		return mergeMaps(aMap, bMap)
	}

	aSlice, aIsSlice := a.([]interface{})
	bSlice, bIsSlice := b.([]interface{})
	if aIsSlice && bIsSlice {
		return mergeSlices(aSlice, bSlice)
	}

	// Scalars or mismatched shapes: the template wins outright.
	return cloneValue(b)
}

func mergeMaps(a, b map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		merged[k] = cloneValue(v)
	}
	for k, bv := range b {
		if av, ok := merged[k]; ok {
			merged[k] = Merge(av, bv)
		} else {
			merged[k] = cloneValue(bv)
		}
	}
	return merged
}

func mergeSlices(a, b []interface{}) []interface{} {
	merged := make([]interface{}, 0, len(a)+len(b))
	for _, v := range a {
		merged = append(merged, cloneValue(v))
	}
	for _, v := range b {
		merged = append(merged, cloneValue(v))
	}
	return merged
}

// cloneValue performs a deep copy of maps and slices so the returned tree
// never aliases a or b, and a shallow pass-through for scalars.
func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = cloneValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}
