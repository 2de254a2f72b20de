package flow

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ArgType marks where an argument is in its lifecycle.
type ArgType int

const (
	// ArgNew is a value produced in the current run.
	ArgNew ArgType = iota
	// ArgOld is a superseded value kept for one generation as history.
	ArgOld
	// ArgAlt is an alternative value that is not meant to be kept as history.
	ArgAlt
	// ArgCopy is a plain duplicate.
	ArgCopy
)

var argTypeNames = map[ArgType]string{
	ArgNew:  "NEW",
	ArgOld:  "OLD",
	ArgAlt:  "ALT",
	ArgCopy: "COPY",
}

func (t ArgType) String() string {
	if name, ok := argTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("ArgType(%d)", int(t))
}

// Argument is a named, timestamped value carried by a Context.
type Argument struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      ArgType   `json:"type"`
	Value     any       `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Ephemeral bool      `json:"ephemeral,omitempty"`
}

// NewArgument creates a NEW argument stamped with the current time.
func NewArgument(name string, value any) Argument {
	return Argument{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      ArgNew,
		Value:     value,
		Timestamp: time.Now(),
	}
}

// NewEphemeralArgument creates an ALT argument that is dropped by WithoutEphemeralArgs.
func NewEphemeralArgument(name string, value any) Argument {
	arg := NewArgument(name, value)
	arg.Type = ArgAlt
	arg.Ephemeral = true

	return arg
}

// IsEmpty reports whether the value is nil, a blank string or an empty sequence.
func (a Argument) IsEmpty() bool {
	if a.Value == nil {
		return true
	}

	if s, ok := a.Value.(string); ok {
		return strings.TrimSpace(s) == ""
	}

	rv := reflect.ValueOf(a.Value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// MakeObsolete applies the two-stage tombstone: a NEW (or ALT/COPY) argument becomes
// OLD keeping its value, a non-empty OLD argument loses its value.
func (a Argument) MakeObsolete() Argument {
	obsolete := a

	if a.Type == ArgOld {
		if !a.IsEmpty() {
			obsolete.Value = nil
		}

		return obsolete
	}

	obsolete.Type = ArgOld

	return obsolete
}

// Copy returns a COPY-typed duplicate with a fresh id.
func (a Argument) Copy() Argument {
	dup := a
	dup.ID = uuid.NewString()
	dup.Type = ArgCopy

	return dup
}

// WithValue returns the argument carrying value, everything else unchanged.
func (a Argument) WithValue(value any) Argument {
	a.Value = value

	return a
}

// SameIdentity compares name, type and timestamp.
func (a Argument) SameIdentity(other Argument) bool {
	return a.Name == other.Name && a.Type == other.Type && a.Timestamp.Equal(other.Timestamp)
}

func (a Argument) String() string {
	if s, ok := a.Value.(fmt.Stringer); ok {
		return fmt.Sprintf("%s[%s]=%s", a.Name, a.Type, s.String())
	}

	return fmt.Sprintf("%s[%s]=%v", a.Name, a.Type, a.Value)
}

// ArgValue returns the argument value converted to V.
func ArgValue[V any](a Argument) (V, bool) {
	v, ok := a.Value.(V)

	return v, ok
}

// argKey is the dedup identity of an argument.
type argKey struct {
	name string
	typ  ArgType
	ts   int64
}

func keyOf(a Argument) argKey {
	return argKey{name: a.Name, typ: a.Type, ts: a.Timestamp.UnixNano()}
}

// normalizeArgs deduplicates by identity (the last occurrence wins), then sorts by
// timestamp descending, type, name.
func normalizeArgs(args []Argument) []Argument {
	index := make(map[argKey]int, len(args))
	out := make([]Argument, 0, len(args))

	for _, arg := range args {
		k := keyOf(arg)
		if pos, ok := index[k]; ok {
			out[pos] = arg

			continue
		}

		index[k] = len(out)
		out = append(out, arg)
	}

	sortArgs(out)

	return out
}
