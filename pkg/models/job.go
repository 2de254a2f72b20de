package models

// ErrorStrategy names how a job reacts to pipe failures.
type ErrorStrategy string

const (
	ErrorStrategyContinue ErrorStrategy = "continue" // keep going with the context the pipe received
	ErrorStrategyRecord   ErrorStrategy = "record"   // keep going with an error argument attached
	ErrorStrategyAbort    ErrorStrategy = "abort"    // stop the run
)

// JobDefinition describes a flow runnable from the command line.
type JobDefinition struct {
	ID            string            `json:"id"                       yaml:"id"                       validate:"required"`
	Description   string            `json:"description,omitempty"    yaml:"description,omitempty"`
	Source        JobSource         `json:"source"                   yaml:"source"`
	ChunkSize     int               `json:"chunk_size,omitempty"     yaml:"chunk_size,omitempty"     validate:"gte=0"`
	ErrorStrategy ErrorStrategy     `json:"error_strategy,omitempty" yaml:"error_strategy,omitempty" validate:"omitempty,oneof=continue record abort"`
	Metadata      map[string]any    `json:"metadata,omitempty"       yaml:"metadata,omitempty"`
	States        []StateDefinition `json:"states"                   yaml:"states"                   validate:"required,min=1,dive"`
}

// JobSource lists the items of a job, inline or read line by line from a file.
type JobSource struct {
	Items []string `json:"items,omitempty" yaml:"items,omitempty" validate:"required_without=File"`
	File  string   `json:"file,omitempty"  yaml:"file,omitempty"  validate:"required_without=Items"`
}

// StateDefinition is one state of a job and its ordered pipes.
type StateDefinition struct {
	Name  string           `json:"name"  yaml:"name"  validate:"required"`
	Pipes []PipeDefinition `json:"pipes" yaml:"pipes" validate:"required,min=1,dive"`
}

// PipeDefinition references a registered pipe, optionally windowed.
type PipeDefinition struct {
	Name   string            `json:"name"             yaml:"name"             validate:"required"`
	Type   string            `json:"type"             yaml:"type"             validate:"required"`
	Config map[string]any    `json:"config,omitempty" yaml:"config,omitempty"`
	Window *WindowDefinition `json:"window,omitempty" yaml:"window,omitempty"`
}

// WindowDefinition turns a pipe into a windowed pipe.
type WindowDefinition struct {
	Kind        string `json:"kind"                yaml:"kind"                validate:"required,oneof=tumbling sliding session"`
	Size        int    `json:"size"                yaml:"size"                validate:"gt=0"`
	Slide       int    `json:"slide,omitempty"     yaml:"slide,omitempty"     validate:"gte=0"`
	Aggregation string `json:"aggregation"         yaml:"aggregation"         validate:"required"`
	Argument    string `json:"argument,omitempty"  yaml:"argument,omitempty"`
	Separator   string `json:"separator,omitempty" yaml:"separator,omitempty"`
	Persist     bool   `json:"persist,omitempty"   yaml:"persist,omitempty"`
}
