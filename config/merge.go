package config

import "reflect"

// Merge returns base with every non-zero field of override applied. Structs
// merge field by field; slices, maps and pointers replace the base value
// as a whole, so a non-nil *bool switch wins even when false. Neither
// argument is modified.
func Merge(base, override Config) Config {
	out := base
	mergeValue(reflect.ValueOf(&out).Elem(), reflect.ValueOf(override))
	return out
}

func mergeValue(dst, src reflect.Value) {
	if src.Kind() == reflect.Struct && !isLeaf(src.Type()) {
		for i := 0; i < src.NumField(); i++ {
			mergeValue(dst.Field(i), src.Field(i))
		}
		return
	}
	if !src.IsZero() {
		dst.Set(src)
	}
}

// Color and other value types with their own meaning merge as one value.
func isLeaf(t reflect.Type) bool {
	return t == reflect.TypeOf(Color{})
}
