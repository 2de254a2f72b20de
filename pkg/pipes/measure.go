package pipes

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/dukex/flowpipe/pkg/flow"
	"github.com/dukex/flowpipe/pkg/protocol"
)

const (
	// ArgWords holds the word count set by the words pipe.
	ArgWords = "words"
	// ArgLength holds the character count set by the length pipe.
	ArgLength = "length"
)

func measure(arg string, fn func(string) int) protocol.Pipe {
	return func(_ context.Context, fc *flow.Context[string]) (*flow.Context[string], error) {
		return fc.Set(arg, fn(CurrentText(fc))), nil
	}
}

func NewWordsFactory() protocol.PipeFactory {
	return &factory{
		id:          "words",
		name:        "Words",
		description: "Counts the words of the text into the words argument",
		schema:      emptySchema(),
		create: func(map[string]any) (protocol.Pipe, error) {
			return measure(ArgWords, func(text string) int { return len(strings.Fields(text)) }), nil
		},
	}
}

func NewLengthFactory() protocol.PipeFactory {
	return &factory{
		id:          "length",
		name:        "Length",
		description: "Counts the characters of the text into the length argument",
		schema:      emptySchema(),
		create: func(map[string]any) (protocol.Pipe, error) {
			return measure(ArgLength, utf8.RuneCountInString), nil
		},
	}
}
