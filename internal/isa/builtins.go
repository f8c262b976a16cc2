package isa

import "strconv"

// BuiltinID identifies a built-in provider a symbol can be bound to.
type BuiltinID uint16

const (
	BuiltinNone BuiltinID = iota
	BuiltinIndex
	BuiltinSize
	BuiltinTime
)

var builtinNames = map[string]BuiltinID{
	"index": BuiltinIndex,
	"size":  BuiltinSize,
	"time":  BuiltinTime,
}

// ParseProvider parses a provider string of shape "host.X" or "host.X.axis"
// into a builtin id and axis. Axis defaults to 0 when absent. Unrecognised
// or malformed providers yield (BuiltinNone, 0).
func ParseProvider(provider string) (BuiltinID, uint8) {
	const prefix = "host."
	if len(provider) <= len(prefix) || provider[:len(prefix)] != prefix {
		return BuiltinNone, 0
	}
	rest := provider[len(prefix):]

	name := rest
	axis := uint8(0)
	for i := 0; i < len(rest); i++ {
		if rest[i] == '.' {
			name = rest[:i]
			n, err := strconv.Atoi(rest[i+1:])
			if err != nil || n < 0 || n >= 256 {
				return BuiltinNone, 0
			}
			axis = uint8(n)
			break
		}
	}

	id, ok := builtinNames[name]
	if !ok {
		return BuiltinNone, 0
	}
	return id, axis
}
