package common

import (
	"strings"

	"github.com/bwmarrin/snowflake"
)

var node *snowflake.Node

func init() {
	var err error
	node, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

// UUIDint64 returns a snowflake id as int64
func UUIDint64() int64 {
	return node.Generate().Int64()
}

// UUID returns a snowflake id in base10
func UUID() string {
	return node.Generate().String()
}

// UUIDBase36 returns a short lowercase snowflake id, used for file name suffixes
func UUIDBase36() string {
	return node.Generate().Base36()
}

func IfEmptyStr(src string, defval string) string {
	if strings.TrimSpace(src) == "" {
		return defval
	}
	return src
}

func InSlice(v string, sl []string) bool {
	for _, vv := range sl {
		if vv == v {
			return true
		}
	}
	return false
}
