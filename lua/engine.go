package lua

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/raniellyferreira/redis-inmemory-cache/protocol"
)

// ErrNoScript is returned by EvalSHA for a hash that was never loaded
var ErrNoScript = errors.New("no matching script")

// Caller sends one command to the cache and returns its reply.
// *client.Client satisfies it.
type Caller interface {
	Do(ctx context.Context, args ...string) (protocol.Value, error)
}

// Engine runs Lua scripts whose kv.call and kv.pcall go to the cache
type Engine struct {
	caller  Caller
	scripts sync.Map // map[string]string - SHA1 -> script content
}

// NewEngine creates a new Lua execution engine
func NewEngine(caller Caller) *Engine {
	return &Engine{
		caller: caller,
	}
}

// Eval executes a Lua script with the given keys and arguments
func (e *Engine) Eval(ctx context.Context, script string, keys []string, args []string) (interface{}, error) {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	e.setupAPI(ctx, L, keys, args)

	if err := L.DoString(script); err != nil {
		return nil, fmt.Errorf("script execution error: %w", err)
	}

	if L.GetTop() == 0 {
		return nil, nil
	}
	return convertLuaValue(L.Get(-1)), nil
}

// EvalSHA executes a previously loaded script by its SHA1 hash
func (e *Engine) EvalSHA(ctx context.Context, sha1 string, keys []string, args []string) (interface{}, error) {
	script, exists := e.scripts.Load(strings.ToLower(sha1))
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoScript, sha1)
	}

	return e.Eval(ctx, script.(string), keys, args)
}

// LoadScript loads a script and returns its SHA1 hash
func (e *Engine) LoadScript(script string) string {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))
	e.scripts.Store(hash, script)
	return hash
}

// ScriptExists checks if scripts with given SHA1 hashes exist
func (e *Engine) ScriptExists(hashes []string) []bool {
	results := make([]bool, len(hashes))
	for i, hash := range hashes {
		_, exists := e.scripts.Load(strings.ToLower(hash))
		results[i] = exists
	}
	return results
}

// ScriptFlush removes all cached scripts
func (e *Engine) ScriptFlush() {
	e.scripts.Range(func(key, value interface{}) bool {
		e.scripts.Delete(key)
		return true
	})
}

// setupAPI installs KEYS, ARGV and the kv table
func (e *Engine) setupAPI(ctx context.Context, L *lua.LState, keys []string, args []string) {
	keysTable := L.NewTable()
	for i, key := range keys {
		keysTable.RawSetInt(i+1, lua.LString(key)) // Lua arrays are 1-indexed
	}
	L.SetGlobal("KEYS", keysTable)

	argvTable := L.NewTable()
	for i, arg := range args {
		argvTable.RawSetInt(i+1, lua.LString(arg))
	}
	L.SetGlobal("ARGV", argvTable)

	kvTable := L.NewTable()
	L.SetFuncs(kvTable, map[string]lua.LGFunction{
		"call": func(L *lua.LState) int {
			reply, err := e.callFromLua(ctx, L)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(convertReply(reply))
			return 1
		},
		"pcall": func(L *lua.LState) int {
			reply, err := e.callFromLua(ctx, L)
			if err != nil {
				// Error as a table with an 'err' field
				errTable := L.NewTable()
				errTable.RawSetString("err", lua.LString(err.Error()))
				L.Push(errTable)
				return 1
			}
			L.Push(convertReply(reply))
			return 1
		},
	})
	L.SetGlobal("kv", kvTable)
}

// callFromLua sends the arguments on the Lua stack as one command
func (e *Engine) callFromLua(ctx context.Context, L *lua.LState) (protocol.Value, error) {
	argc := L.GetTop()
	if argc == 0 {
		return protocol.Value{}, fmt.Errorf("wrong number of arguments for kv.call")
	}

	args := make([]string, argc)
	for i := 1; i <= argc; i++ {
		switch v := L.Get(i).(type) {
		case lua.LString, lua.LNumber:
			args[i-1] = v.String()
		default:
			return protocol.Value{}, fmt.Errorf("argument %d must be a string or number, got %s", i, v.Type())
		}
	}

	reply, err := e.caller.Do(ctx, args...)
	if err != nil {
		return protocol.Value{}, err
	}
	return reply, nil
}

// convertReply converts a server reply to a Lua value. A null bulk string
// becomes false; an absent key keeps its wire form, the integer -1.
func convertReply(v protocol.Value) lua.LValue {
	switch v.Type {
	case protocol.TypeInteger:
		return lua.LNumber(float64(v.Integer))
	case protocol.TypeBulkString:
		if v.IsNull {
			return lua.LFalse
		}
		return lua.LString(v.Data)
	default:
		return lua.LString(v.String())
	}
}

// convertLuaValue converts a Lua value to a Go value
func convertLuaValue(lv lua.LValue) interface{} {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		if isArrayLikeTable(v) {
			result := make([]interface{}, 0, v.Len())
			for i := 1; i <= v.Len(); i++ {
				result = append(result, convertLuaValue(v.RawGetInt(i)))
			}
			return result
		}
		result := make(map[string]interface{})
		v.ForEach(func(k, val lua.LValue) {
			result[k.String()] = convertLuaValue(val)
		})
		return result
	default:
		return lv.String()
	}
}

// isArrayLikeTable reports whether the table's keys are exactly 1..n
func isArrayLikeTable(table *lua.LTable) bool {
	length := table.Len()

	arrayLike := true
	table.ForEach(func(k, v lua.LValue) {
		num, ok := k.(lua.LNumber)
		if !ok {
			arrayLike = false
			return
		}
		idx := int(num)
		if float64(idx) != float64(num) || idx < 1 || idx > length {
			arrayLike = false
		}
	})
	return arrayLike
}
