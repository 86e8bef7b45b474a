package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/raniellyferreira/redis-inmemory-cache/protocol"
)

var (
	errorColor   = color.New(color.FgRed)
	integerColor = color.New(color.FgCyan)
	stringColor  = color.New(color.FgGreen)
	nilColor     = color.New(color.FgHiBlack)
)

// formatReply renders a reply the way people expect from a cache console
func formatReply(v protocol.Value) string {
	switch v.Type {
	case protocol.TypeSimpleString:
		return string(v.Data)
	case protocol.TypeError:
		return errorColor.Sprintf("(error) %s", v.Data)
	case protocol.TypeInteger:
		return integerColor.Sprintf("(integer) %d", v.Integer)
	case protocol.TypeBulkString:
		if v.IsNull {
			return nilColor.Sprint("(nil)")
		}
		return stringColor.Sprint(strconv.Quote(string(v.Data)))
	default:
		return v.String()
	}
}

// formatResult renders a Lua script result
func formatResult(result interface{}) string {
	switch r := result.(type) {
	case nil:
		return nilColor.Sprint("(nil)")
	case string:
		return stringColor.Sprint(strconv.Quote(r))
	case int64:
		return integerColor.Sprintf("(integer) %d", r)
	case []interface{}:
		if len(r) == 0 {
			return "(empty array)"
		}
		lines := make([]string, len(r))
		for i, item := range r {
			lines[i] = fmt.Sprintf("%d) %s", i+1, formatResult(item))
		}
		return strings.Join(lines, "\n")
	case map[string]interface{}:
		keys := make([]string, 0, len(r))
		for k := range r {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, len(keys))
		for i, k := range keys {
			lines[i] = fmt.Sprintf("%s: %s", k, formatResult(r[k]))
		}
		return strings.Join(lines, "\n")
	default:
		return fmt.Sprint(r)
	}
}
