package protocol

import "strconv"

// EncodeSimpleString renders "+s\r\n"
func EncodeSimpleString(s string) []byte {
	b := make([]byte, 0, len(s)+3)
	b = append(b, byte(TypeSimpleString))
	b = append(b, s...)
	return append(b, CRLF...)
}

// EncodeError renders "-msg\r\n"
func EncodeError(msg string) []byte {
	b := make([]byte, 0, len(msg)+3)
	b = append(b, byte(TypeError))
	b = append(b, msg...)
	return append(b, CRLF...)
}

// EncodeInteger renders ":n\r\n"
func EncodeInteger(n int64) []byte {
	b := make([]byte, 0, 24)
	b = append(b, byte(TypeInteger))
	b = strconv.AppendInt(b, n, 10)
	return append(b, CRLF...)
}

// EncodeBulkString renders "$len\r\ns\r\n"
func EncodeBulkString(s string) []byte {
	return appendBulk(make([]byte, 0, len(s)+16), s)
}

// EncodeNullBulkString renders "$-1\r\n"
func EncodeNullBulkString() []byte {
	return []byte("$-1" + CRLF)
}

// EncodeCommand renders args as an array of bulk strings. It is the form
// clients use to send arbitrary commands.
func EncodeCommand(args ...string) []byte {
	size := 16
	for _, arg := range args {
		size += len(arg) + 16
	}

	b := make([]byte, 0, size)
	b = append(b, byte(TypeArray))
	b = strconv.AppendInt(b, int64(len(args)), 10)
	b = append(b, CRLF...)
	for _, arg := range args {
		b = appendBulk(b, arg)
	}
	return b
}

// EncodeValue renders any value. Unknown types render as an error value.
func EncodeValue(v Value) []byte {
	switch v.Type {
	case TypeSimpleString:
		return EncodeSimpleString(string(v.Data))
	case TypeError:
		return EncodeError(string(v.Data))
	case TypeInteger:
		return EncodeInteger(v.Integer)
	case TypeBulkString:
		if v.IsNull {
			return EncodeNullBulkString()
		}
		return appendBulk(make([]byte, 0, len(v.Data)+16), string(v.Data))
	case TypeArray:
		if v.IsNull {
			return []byte("*-1" + CRLF)
		}
		b := []byte{byte(TypeArray)}
		b = strconv.AppendInt(b, int64(len(v.Array)), 10)
		b = append(b, CRLF...)
		for _, item := range v.Array {
			b = append(b, EncodeValue(item)...)
		}
		return b
	default:
		return EncodeError("ERR unsupported value type")
	}
}

func appendBulk(b []byte, s string) []byte {
	b = append(b, byte(TypeBulkString))
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, CRLF...)
	b = append(b, s...)
	return append(b, CRLF...)
}
