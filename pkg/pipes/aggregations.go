package pipes

import (
	"strings"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/protocol"
)

func numeric(argument string) func(fc *flow.Context[string]) (float64, bool) {
	if argument == "" {
		argument = ArgLength
	}

	return flow.ArgNumber[string](argument)
}

func texts(buffered []*flow.Context[string]) []string {
	parts := make([]string, 0, len(buffered))

	for _, fc := range buffered {
		if text := CurrentText(fc); text != "" {
			parts = append(parts, text)
		}
	}

	return parts
}

// Aggregations returns the reducers windowed job pipes can name. Numeric reducers read
// the length argument unless told otherwise; text reducers read the working text.
func Aggregations() map[string]protocol.AggregationFactory {
	return map[string]protocol.AggregationFactory{
		"count": func(string, string) flow.Aggregation[string] {
			return flow.Count[string]()
		},
		"sum": func(argument, _ string) flow.Aggregation[string] {
			return flow.Sum(numeric(argument))
		},
		"avg": func(argument, _ string) flow.Aggregation[string] {
			return flow.Avg(numeric(argument))
		},
		"min": func(argument, _ string) flow.Aggregation[string] {
			return flow.Min(numeric(argument))
		},
		"max": func(argument, _ string) flow.Aggregation[string] {
			return flow.Max(numeric(argument))
		},
		"concat": func(argument, separator string) flow.Aggregation[string] {
			if argument != "" && argument != ArgText {
				return flow.Concat[string](argument, separator)
			}

			return flow.NewAggregation("concat", func(buffered []*flow.Context[string]) (any, bool) {
				parts := texts(buffered)

				return strings.Join(parts, separator), len(parts) > 0
			})
		},
		"pack": func(argument, _ string) flow.Aggregation[string] {
			if argument != "" && argument != ArgText {
				return flow.Pack[string](argument)
			}

			return flow.NewAggregation("pack", func(buffered []*flow.Context[string]) (any, bool) {
				parts := texts(buffered)

				return parts, len(parts) > 0
			})
		},
		"items": func(string, string) flow.Aggregation[string] {
			return flow.Items[string]()
		},
	}
}
