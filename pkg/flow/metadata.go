package flow

import "maps"

// Metadata keys understood by the runners.
const (
	// MetaPreventSink disables the sink callback for pipe results.
	MetaPreventSink = "PREVENT_SINK"
	// MetaPreventStateUpdate disables per-pipe checkpoints.
	MetaPreventStateUpdate = "PREVENT_STATE_UPDATE"
	// MetaExtendEnabled makes the runner apply the extend hook before bootstrapping.
	MetaExtendEnabled = "EXTEND_ENABLED"
	// MetaProcessedChunks holds the hashes of the chunks processed so far ([]string).
	MetaProcessedChunks = "PROCESSED_CHUNKS"
	// MetaProcessedChunk holds the hash of the chunk a sub-flow is scoped to.
	MetaProcessedChunk = "PROCESSED_CHUNK"
	// MetaPreviousChunk holds the items of the chunk preceding the current one.
	MetaPreviousChunk = "PREVIOUS_CHUNK"
	// MetaChunkIndex holds the position of the chunk within the batch.
	MetaChunkIndex = "CHUNK_INDEX"
	// MetaFlowID holds the id of the flow (or job) the metadata belongs to.
	MetaFlowID = "FLOW_ID"
)

// Metadata is a string keyed bag of values attached to flows and contexts.
type Metadata map[string]any

// Clone returns a shallow copy, never nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}

	return maps.Clone(m)
}

// Flag reports whether key holds boolean true (or the string "true").
func (m Metadata) Flag(key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// String returns the string stored under key.
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)

	return s
}

// Meta returns the value stored under key converted to V.
func Meta[V any](m Metadata, key string) (V, bool) {
	v, ok := m[key].(V)

	return v, ok
}

// JobKey identifies the job a metadata bag belongs to. Chunk dedup is tracked per job.
func JobKey(m Metadata) string {
	return m.String(MetaFlowID)
}

// CheckpointKey identifies the cursor a metadata bag resumes from. Sub-flows scoped to a
// chunk get their own cursor.
func CheckpointKey(m Metadata) string {
	key := JobKey(m)
	if chunk := m.String(MetaProcessedChunk); chunk != "" {
		key += "#" + chunk
	}

	return key
}
