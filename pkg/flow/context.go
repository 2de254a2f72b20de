package flow

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
)

// State names a stage of a flow.
type State string

// ArgIteration is the argument the runner sets to the 1-based item position.
const ArgIteration = "iteration"

// Extractor picks an argument out of a context. It returns false when nothing matches.
type Extractor[T any] func(fc *Context[T]) (Argument, bool)

// Named extracts the most recent NEW argument called name.
func Named[T any](name string) Extractor[T] {
	return func(fc *Context[T]) (Argument, bool) {
		return fc.lookup(name, ArgNew)
	}
}

// NamedOfType extracts the most recent argument with the given name and type.
func NamedOfType[T any](name string, typ ArgType) Extractor[T] {
	return func(fc *Context[T]) (Argument, bool) {
		return fc.lookup(name, typ)
	}
}

// Context is an immutable snapshot of a flow execution. Every mutating operation returns
// a new Context sharing the flow reference and copying the argument collection.
type Context[T any] struct {
	id        string
	state     State
	flow      *Flow[T]
	metadata  Metadata
	item      T
	pipeIndex int
	args      []Argument
}

// NewContext creates a context positioned on item in state.
func NewContext[T any](item T, state State, metadata Metadata) *Context[T] {
	return &Context[T]{
		id:       uuid.NewString(),
		state:    state,
		metadata: metadata.Clone(),
		item:     item,
	}
}

// Snapshot is the serializable view of a Context.
type Snapshot[T any] struct {
	ID        string     `json:"id"`
	State     State      `json:"state"`
	Item      T          `json:"item"`
	PipeIndex int        `json:"pipe_index"`
	Metadata  Metadata   `json:"metadata,omitempty"`
	Arguments []Argument `json:"arguments,omitempty"`
}

func (c *Context[T]) ID() string { return c.id }
func (c *Context[T]) State() State { return c.state }
func (c *Context[T]) Item() T { return c.item }
func (c *Context[T]) PipeIndex() int { return c.pipeIndex }
func (c *Context[T]) Flow() *Flow[T] { return c.flow }
func (c *Context[T]) Metadata() Metadata { return c.metadata.Clone() }

// Meta returns a metadata value.
func (c *Context[T]) Meta(key string) (any, bool) {
	v, ok := c.metadata[key]

	return v, ok
}

// Flag reports a boolean metadata flag.
func (c *Context[T]) Flag(key string) bool {
	return c.metadata.Flag(key)
}

// Arguments returns a copy of the normalized argument collection.
func (c *Context[T]) Arguments() []Argument {
	return slices.Clone(c.args)
}

// Snapshot returns a serializable copy of the context.
func (c *Context[T]) Snapshot() Snapshot[T] {
	return Snapshot[T]{
		ID:        c.id,
		State:     c.state,
		Item:      c.item,
		PipeIndex: c.pipeIndex,
		Metadata:  c.metadata.Clone(),
		Arguments: slices.Clone(c.args),
	}
}

// Copy returns an equal context whose arguments are deduplicated and ordered.
func (c *Context[T]) Copy() *Context[T] {
	return c.clone()
}

func (c *Context[T]) clone() *Context[T] {
	out := *c
	out.args = normalizeArgs(slices.Clone(c.args))

	return &out
}

func (c *Context[T]) withArgs(args []Argument) *Context[T] {
	out := *c
	out.args = normalizeArgs(args)

	return &out
}

func (c *Context[T]) lookup(name string, typ ArgType) (Argument, bool) {
	for _, arg := range c.args {
		if arg.Name == name && arg.Type == typ {
			return arg, true
		}
	}

	return Argument{}, false
}

// contains reports whether an argument with the same name and type as arg is present.
func (c *Context[T]) contains(arg Argument) bool {
	_, ok := c.lookup(arg.Name, arg.Type)

	return ok
}

// Find runs the extractor and confirms the result is part of this context.
func (c *Context[T]) Find(extract Extractor[T]) (Argument, bool) {
	if extract == nil {
		return Argument{}, false
	}

	arg, ok := extract(c)
	if !ok || !c.contains(arg) {
		return Argument{}, false
	}

	return arg, true
}

// Arg returns the most recent NEW argument called name, or a fresh empty one.
func (c *Context[T]) Arg(name string) Argument {
	if arg, ok := c.lookup(name, ArgNew); ok {
		return arg
	}

	return NewArgument(name, nil)
}

// Value returns the value of the most recent NEW argument called name.
func (c *Context[T]) Value(name string) (any, bool) {
	arg, ok := c.lookup(name, ArgNew)
	if !ok {
		return nil, false
	}

	return arg.Value, true
}

// History returns every argument called name, most recent first.
func (c *Context[T]) History(name string) []Argument {
	var history []Argument

	for _, arg := range c.args {
		if arg.Name == name {
			history = append(history, arg)
		}
	}

	return history
}

// Iteration returns the 1-based position of the current item, 0 before the first item.
func (c *Context[T]) Iteration() int {
	n, _ := ArgValue[int](c.Arg(ArgIteration))

	return n
}

// WithArgs adds arguments.
func (c *Context[T]) WithArgs(args ...Argument) *Context[T] {
	return c.withArgs(append(slices.Clone(c.args), args...))
}

// Rearrange advances an argument: the extracted value becomes OLD history, older OLD
// entries with the same name are tombstoned and next is appended as the current value.
func (c *Context[T]) Rearrange(extract Extractor[T], next Argument) *Context[T] {
	current, found := c.Find(extract)

	name := next.Name
	if name == "" {
		name = current.Name
		next.Name = name
	}

	args := make([]Argument, 0, len(c.args)+1)

	for _, arg := range c.args {
		switch {
		case found && arg.SameIdentity(current):
			args = append(args, arg.MakeObsolete())
		case arg.Name == name && arg.Type == ArgOld:
			if arg.IsEmpty() {
				continue // tombstoned by the previous rearrange
			}

			args = append(args, arg.MakeObsolete())
		default:
			args = append(args, arg)
		}
	}

	if next.Timestamp.IsZero() {
		next.Timestamp = time.Now()
	}

	if found && !next.Timestamp.After(current.Timestamp) {
		next.Timestamp = current.Timestamp.Add(time.Nanosecond)
	}

	if next.ID == "" {
		next.ID = uuid.NewString()
	}

	return c.withArgs(append(args, next))
}

// Set is Rearrange on the most recent NEW argument called name.
func (c *Context[T]) Set(name string, value any) *Context[T] {
	return c.Rearrange(Named[T](name), NewArgument(name, value))
}

// Replace swaps the extracted argument for next without keeping history.
func (c *Context[T]) Replace(extract Extractor[T], next Argument) *Context[T] {
	current, found := c.Find(extract)

	args := make([]Argument, 0, len(c.args)+1)

	for _, arg := range c.args {
		if found && arg.SameIdentity(current) {
			continue
		}

		args = append(args, arg)
	}

	if next.Timestamp.IsZero() {
		next.Timestamp = time.Now()
	}

	if next.ID == "" {
		next.ID = uuid.NewString()
	}

	return c.withArgs(append(args, next))
}

// RemoveArgs drops every argument matching pred.
func (c *Context[T]) RemoveArgs(pred func(Argument) bool) *Context[T] {
	args := make([]Argument, 0, len(c.args))

	for _, arg := range c.args {
		if !pred(arg) {
			args = append(args, arg)
		}
	}

	return c.withArgs(args)
}

// WithoutEphemeralArgs drops ephemeral arguments.
func (c *Context[T]) WithoutEphemeralArgs() *Context[T] {
	return c.RemoveArgs(func(a Argument) bool { return a.Ephemeral })
}

// WithoutOldAndEmpty drops tombstones: OLD arguments whose value is empty.
func (c *Context[T]) WithoutOldAndEmpty() *Context[T] {
	return c.RemoveArgs(func(a Argument) bool { return a.Type == ArgOld && a.IsEmpty() })
}

func (c *Context[T]) WithItem(item T) *Context[T] {
	out := c.clone()
	out.item = item

	return out
}

func (c *Context[T]) WithState(state State) *Context[T] {
	out := c.clone()
	out.state = state

	return out
}

func (c *Context[T]) WithPipeIndex(index int) *Context[T] {
	out := c.clone()
	out.pipeIndex = index

	return out
}

func (c *Context[T]) WithFlow(f *Flow[T]) *Context[T] {
	out := c.clone()
	out.flow = f

	return out
}

// WithMetadata sets a metadata entry on a copy of the metadata.
func (c *Context[T]) WithMetadata(key string, value any) *Context[T] {
	out := c.clone()
	out.metadata = c.metadata.Clone()
	out.metadata[key] = value

	return out
}

// WithoutMetadata removes a metadata entry.
func (c *Context[T]) WithoutMetadata(key string) *Context[T] {
	out := c.clone()
	out.metadata = c.metadata.Clone()
	delete(out.metadata, key)

	return out
}

func sortArgs(args []Argument) {
	slices.SortStableFunc(args, func(a, b Argument) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}

		if c := cmp.Compare(a.Type, b.Type); c != 0 {
			return c
		}

		return cmp.Compare(a.Name, b.Name)
	})
}
