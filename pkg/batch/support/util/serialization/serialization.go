// Package serialization renders configuration entries for logs with secrets masked.
package serialization

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MaskedKeys lists the entry keys whose values are never written to logs.
var MaskedKeys = []string{"password", "passwd", "credentials_file", "secret", "token"}

const mask = "********"

// MaskSecrets returns a copy of entry with the values of MaskedKeys replaced.
// Key comparison ignores case. Nested maps are masked too; other values are copied as is.
func MaskSecrets(entry map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(entry))
	for k, v := range entry {
		if isMasked(k) {
			masked[k] = mask
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			v = MaskSecrets(nested)
		}
		masked[k] = v
	}
	return masked
}

// MaskedJSON renders raw as compact JSON after masking secrets.
// Values that are not maps are rendered with %v.
func MaskedJSON(raw interface{}) string {
	entry, ok := raw.(map[string]interface{})
	if !ok {
		return fmt.Sprintf("%v", raw)
	}
	data, err := json.Marshal(MaskSecrets(entry))
	if err != nil {
		keys := make([]string, 0, len(entry))
		for k := range entry {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("{keys: %s}", strings.Join(keys, ","))
	}
	return string(data)
}

func isMasked(key string) bool {
	for _, m := range MaskedKeys {
		if strings.EqualFold(key, m) {
			return true
		}
	}
	return false
}
