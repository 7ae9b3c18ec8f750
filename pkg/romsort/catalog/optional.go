package catalog

import "encoding/json"

// Optional holds a value that a catalog may or may not declare.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an empty Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it was declared.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the value was declared.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// OrElse returns the value, or def when it was not declared.
func (o Optional[T]) OrElse(def T) T {
	if !o.set {
		return def
	}
	return o.value
}

// MarshalJSON encodes an undeclared value as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// MarshalYAML encodes an undeclared value as null.
func (o Optional[T]) MarshalYAML() (interface{}, error) {
	if !o.set {
		return nil, nil
	}
	return o.value, nil
}

// optionalString treats an empty attribute the same as a missing one.
func optionalString(s string) Optional[string] {
	if s == "" {
		return None[string]()
	}
	return Some(s)
}
