package flow

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// Hashable is implemented by items that carry a stable content hash. Chunks of Hashable
// items are hashed from those values instead of their serialized form.
type Hashable interface {
	ContentHash() string
}

// ChunkHash returns the CRC32 content hash of a chunk as lowercase hex.
func ChunkHash[T any](items []T) (string, error) {
	hashes := make([]string, 0, len(items))

	for _, item := range items {
		h, ok := any(item).(Hashable)
		if !ok {
			hashes = nil

			break
		}

		hashes = append(hashes, h.ContentHash())
	}

	if hashes != nil {
		return checksum([]byte(strings.Join(hashes, ","))), nil
	}

	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnhashableChunk, err)
	}

	return checksum(data), nil
}

// ContentHash returns the CRC32 hash of a string, for items implementing Hashable.
func ContentHash(s string) string {
	return checksum([]byte(s))
}

func checksum(data []byte) string {
	return strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 16)
}

// Chunks splits items in consecutive slices of size. The last chunk may be shorter.
func Chunks[T any](items []T, size int) ([][]T, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, size)
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}

	return chunks, nil
}
