package configvalidator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ErrUnknownField returns when an unknown field appears in the config.
var ErrUnknownField = errors.New("unknown field")

// ErrFieldKind returns when a section is used as a value or vice versa.
var ErrFieldKind = errors.New("section and value mixed")

// CheckForUnknownFields validates the config map against the struct
// describing all known fields. Fields are named by `mapstructure` tags or
// lower-cased Go names, nested structs are sections.
func CheckForUnknownFields(configMap map[string]any, config any) error {
	return checkForUnknownFields(configMap, reflect.TypeOf(config), "")
}

func checkForUnknownFields(configMap map[string]any, t reflect.Type, currentPath string) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	expectedFields := make(map[string]reflect.Type, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)

		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" {
			name = strings.ToLower(f.Name)
		}

		expectedFields[name] = f.Type
	}

	keys := make([]string, 0, len(configMap))
	for key := range configMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fullPath := key
		if currentPath != "" {
			fullPath = currentPath + "." + key
		}

		ft, ok := expectedFields[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, fullPath)
		}

		nestedMap, isMap := configMap[key].(map[string]any)
		if isMap != (ft.Kind() == reflect.Struct) {
			return fmt.Errorf("%w: %s", ErrFieldKind, fullPath)
		}

		if isMap {
			if err := checkForUnknownFields(nestedMap, ft, fullPath); err != nil {
				return err
			}
		}
	}

	return nil
}
