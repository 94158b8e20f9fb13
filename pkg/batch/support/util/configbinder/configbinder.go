// Package configbinder decodes loosely typed configuration entries into structs.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Bind decodes raw, typically a map[string]interface{} taken from YAML or from
// component properties, into target using its `mapstructure` tags.
// Input is weakly typed, so "5432" binds to an int field; this lets environment
// overrides, which are always strings, replace numeric and boolean values.
//
// Parameters:
//
//	raw: The value to decode. nil leaves target unchanged.
//	target: A pointer to the struct to populate.
//
// Returns:
//
//	An error if raw cannot be decoded into target.
func Bind(raw interface{}, target interface{}) error {
	if raw == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}
	return nil
}
