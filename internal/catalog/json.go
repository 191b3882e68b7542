package catalog

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// toID coerces a numeric or string id to its string form
func toID(v interface{}) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return cast.ToString(int64(f))
	}
	return strings.TrimSpace(cast.ToString(v))
}
