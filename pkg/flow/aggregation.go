package flow

import (
	"fmt"
	"math"
	"strings"
)

// ArgResult is the argument an Aggregation stores its result in.
const ArgResult = "result"

// Aggregation reduces a window of contexts into one context carrying a result argument.
// The result is attached to the most recent buffered context.
type Aggregation[T any] struct {
	name   string
	reduce func(buffered []*Context[T]) (*Context[T], error)
}

// NewAggregation wraps a reducer computing the result value. Returning false means no
// result was produced.
func NewAggregation[T any](name string, fn func(buffered []*Context[T]) (any, bool)) Aggregation[T] {
	return Aggregation[T]{
		name: name,
		reduce: func(buffered []*Context[T]) (*Context[T], error) {
			if len(buffered) == 0 {
				return nil, ErrEmptyWindow
			}

			base := buffered[len(buffered)-1]

			value, ok := fn(buffered)
			if !ok {
				return base, nil
			}

			return base.Set(ArgResult, value), nil
		},
	}
}

// Name describes the aggregation.
func (a Aggregation[T]) Name() string {
	return a.name
}

// Aggregate reduces buffered.
func (a Aggregation[T]) Aggregate(buffered []*Context[T]) (*Context[T], error) {
	if a.reduce == nil {
		return nil, fmt.Errorf("aggregation %q has no reducer", a.name)
	}

	if len(buffered) == 0 {
		return nil, ErrEmptyWindow
	}

	return a.reduce(buffered)
}

// AndThen feeds the result context into next.
func (a Aggregation[T]) AndThen(next Aggregation[T]) Aggregation[T] {
	return Aggregation[T]{
		name: a.name + "|" + next.name,
		reduce: func(buffered []*Context[T]) (*Context[T], error) {
			fc, err := a.Aggregate(buffered)
			if err != nil {
				return nil, err
			}

			return next.Aggregate([]*Context[T]{fc})
		},
	}
}

// OnResult post-processes the result context, only when a result was produced.
func (a Aggregation[T]) OnResult(fn func(fc *Context[T]) *Context[T]) Aggregation[T] {
	return Aggregation[T]{
		name: a.name,
		reduce: func(buffered []*Context[T]) (*Context[T], error) {
			fc, err := a.Aggregate(buffered)
			if err != nil {
				return nil, err
			}

			if !HasResult(fc) {
				return fc, nil
			}

			return fn(fc), nil
		},
	}
}

// HasResult reports whether fc carries a non-empty result argument.
func HasResult[T any](fc *Context[T]) bool {
	arg, ok := fc.lookup(ArgResult, ArgNew)

	return ok && !arg.IsEmpty()
}

// Result returns the result argument value of fc.
func Result[V any, T any](fc *Context[T]) (V, bool) {
	arg, ok := fc.lookup(ArgResult, ArgNew)
	if !ok {
		var zero V

		return zero, false
	}

	return ArgValue[V](arg)
}

// Sum adds up the numbers extracted from each context.
func Sum[T any](extract func(fc *Context[T]) (float64, bool)) Aggregation[T] {
	return NewAggregation("sum", func(buffered []*Context[T]) (any, bool) {
		total, n := sumOf(buffered, extract)

		return total, n > 0
	})
}

// Avg averages the numbers extracted from each context.
func Avg[T any](extract func(fc *Context[T]) (float64, bool)) Aggregation[T] {
	return NewAggregation("avg", func(buffered []*Context[T]) (any, bool) {
		total, n := sumOf(buffered, extract)
		if n == 0 {
			return nil, false
		}

		return total / float64(n), true
	})
}

// Min keeps the smallest extracted number.
func Min[T any](extract func(fc *Context[T]) (float64, bool)) Aggregation[T] {
	return NewAggregation("min", func(buffered []*Context[T]) (any, bool) {
		return extremeOf(buffered, extract, math.Min)
	})
}

// Max keeps the largest extracted number.
func Max[T any](extract func(fc *Context[T]) (float64, bool)) Aggregation[T] {
	return NewAggregation("max", func(buffered []*Context[T]) (any, bool) {
		return extremeOf(buffered, extract, math.Max)
	})
}

// Count returns the number of buffered contexts.
func Count[T any]() Aggregation[T] {
	return NewAggregation("count", func(buffered []*Context[T]) (any, bool) {
		return len(buffered), true
	})
}

// Map collects the values extracted from each context, in buffer order.
func Map[T any](extract func(fc *Context[T]) (any, bool)) Aggregation[T] {
	return NewAggregation("map", func(buffered []*Context[T]) (any, bool) {
		values := make([]any, 0, len(buffered))

		for _, fc := range buffered {
			if v, ok := extract(fc); ok {
				values = append(values, v)
			}
		}

		return values, len(values) > 0
	})
}

// Pack collects the value of the argument called name from each context.
func Pack[T any](name string) Aggregation[T] {
	agg := Map(func(fc *Context[T]) (any, bool) {
		arg, ok := fc.lookup(name, ArgNew)
		if !ok || arg.IsEmpty() {
			return nil, false
		}

		return arg.Value, true
	})
	agg.name = "pack"

	return agg
}

// Items collects the items of the buffered contexts.
func Items[T any]() Aggregation[T] {
	return NewAggregation("items", func(buffered []*Context[T]) (any, bool) {
		items := make([]T, 0, len(buffered))
		for _, fc := range buffered {
			items = append(items, fc.Item())
		}

		return items, true
	})
}

// Concat joins the string values of the argument called name with sep.
func Concat[T any](name, sep string) Aggregation[T] {
	return NewAggregation("concat", func(buffered []*Context[T]) (any, bool) {
		parts := make([]string, 0, len(buffered))

		for _, fc := range buffered {
			if s, ok := ArgValue[string](fc.Arg(name)); ok && s != "" {
				parts = append(parts, s)
			}
		}

		return strings.Join(parts, sep), len(parts) > 0
	})
}

// ArgNumber extracts the most recent NEW argument called name as a number.
func ArgNumber[T any](name string) func(fc *Context[T]) (float64, bool) {
	return func(fc *Context[T]) (float64, bool) {
		arg, ok := fc.lookup(name, ArgNew)
		if !ok {
			return 0, false
		}

		return ToFloat(arg.Value)
	}
}

// ToFloat converts the common numeric types to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func sumOf[T any](buffered []*Context[T], extract func(fc *Context[T]) (float64, bool)) (float64, int) {
	var (
		total float64
		n     int
	)

	for _, fc := range buffered {
		if v, ok := extract(fc); ok {
			total += v
			n++
		}
	}

	return total, n
}

func extremeOf[T any](buffered []*Context[T], extract func(fc *Context[T]) (float64, bool), pick func(a, b float64) float64) (any, bool) {
	var (
		best  float64
		found bool
	)

	for _, fc := range buffered {
		v, ok := extract(fc)
		if !ok {
			continue
		}

		if !found {
			best, found = v, true

			continue
		}

		best = pick(best, v)
	}

	return best, found
}
