// Package pipes provides the built-in text pipes available to job definitions.
package pipes

import (
	"github.com/dukex/flowpipe/pkg/flow"
)

// ArgText holds the working text of the current item.
const ArgText = "text"

// Text is the working value of one item inside one state. Pipes of a state chain through
// it; a new item or a new state starts again from the source item.
type Text struct {
	State     flow.State `json:"state"`
	Iteration int        `json:"iteration"`
	Value     string     `json:"value"`
}

// CurrentText returns the working text of fc, falling back to the item.
func CurrentText(fc *flow.Context[string]) string {
	text, ok := flow.ArgValue[Text](fc.Arg(ArgText))
	if ok && text.State == fc.State() && text.Iteration == fc.Iteration() {
		return text.Value
	}

	return fc.Item()
}

// WithText stores value as the working text of fc.
func WithText(fc *flow.Context[string], value string) *flow.Context[string] {
	return fc.Set(ArgText, Text{State: fc.State(), Iteration: fc.Iteration(), Value: value})
}
