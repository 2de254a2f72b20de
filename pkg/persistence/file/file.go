// Package file provides file-based persistence for flow checkpoints and processed chunks.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/flowpipe/pkg/models"
	"github.com/dukex/flowpipe/pkg/persistence"
)

var _ persistence.Persistence = (*Persistence)(nil)

const (
	checkpointsDir = "checkpoints"
	chunksDir      = "chunks"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Every checkpoint is one JSON file; the processed chunks of a job share one JSON file.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Root returns the directory the persistence writes to.
func (fp *Persistence) Root() string {
	return fp.root
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Checkpoint reads the checkpoint stored under key.
func (fp *Persistence) Checkpoint(_ context.Context, key string) (*models.Checkpoint, error) {
	if err := persistence.ValidateKey(key); err != nil {
		return nil, persistence.NewCheckpointError("Checkpoint", key, err)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return fp.readCheckpoint(filepath.Join(fp.root, checkpointsDir, key+".json"))
}

func (fp *Persistence) readCheckpoint(filePath string) (*models.Checkpoint, error) {
	data, err := os.ReadFile(filePath) // #nosec G304 -- filePath is built from a validated key
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrCheckpointNotFound
		}

		return nil, fmt.Errorf("failed to read checkpoint %s: %w", filePath, err)
	}

	var checkpoint models.Checkpoint

	err = json.Unmarshal(data, &checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", filePath, err)
	}

	return &checkpoint, nil
}

// Checkpoints lists the checkpoints of a job and its chunks, ordered by key.
func (fp *Persistence) Checkpoints(_ context.Context, jobKey string) ([]*models.Checkpoint, error) {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return nil, persistence.NewCheckpointError("Checkpoints", jobKey, err)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	files, err := fp.checkpointFiles(jobKey)
	if err != nil {
		return nil, err
	}

	checkpoints := make([]*models.Checkpoint, 0, len(files))

	for _, file := range files {
		checkpoint, err := fp.readCheckpoint(file)
		if err != nil {
			if errors.Is(err, persistence.ErrCheckpointNotFound) {
				continue
			}

			return nil, err
		}

		checkpoints = append(checkpoints, checkpoint)
	}

	return checkpoints, nil
}

func (fp *Persistence) checkpointFiles(jobKey string) ([]string, error) {
	dir := filepath.Join(fp.root, checkpointsDir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var files []string

	for _, entry := range entries {
		key, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok || entry.IsDir() || !persistence.BelongsTo(key, jobKey) {
			continue
		}

		files = append(files, filepath.Join(dir, entry.Name()))
	}

	slices.Sort(files)

	return files, nil
}

// SaveCheckpoint writes the checkpoint, replacing any previous one with the same key.
func (fp *Persistence) SaveCheckpoint(_ context.Context, checkpoint *models.Checkpoint) error {
	if err := persistence.ValidateKey(checkpoint.Key); err != nil {
		return persistence.NewCheckpointError("SaveCheckpoint", checkpoint.Key, err)
	}

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint %s: %w", checkpoint.Key, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.write(filepath.Join(fp.root, checkpointsDir), checkpoint.Key+".json", data)
}

// write replaces name in dir through a temporary file so readers never see a partial file.
func (fp *Persistence) write(dir, name string, data []byte) error {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	err = os.Rename(tmp.Name(), filepath.Join(dir, name))
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace %s: %w", name, err)
	}

	return nil
}

func (fp *Persistence) readChunks(jobKey string) ([]*models.ProcessedChunk, error) {
	filePath := filepath.Join(fp.root, chunksDir, jobKey+".json")

	data, err := os.ReadFile(filePath) // #nosec G304 -- filePath is built from a validated key
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read processed chunks of %s: %w", jobKey, err)
	}

	var chunks []*models.ProcessedChunk

	err = json.Unmarshal(data, &chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal processed chunks of %s: %w", jobKey, err)
	}

	return chunks, nil
}

// ChunkProcessed reports whether hash is recorded for the job.
func (fp *Persistence) ChunkProcessed(_ context.Context, jobKey, hash string) (bool, error) {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return false, persistence.NewCheckpointError("ChunkProcessed", jobKey, err)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	chunks, err := fp.readChunks(jobKey)
	if err != nil {
		return false, err
	}

	return slices.ContainsFunc(chunks, func(c *models.ProcessedChunk) bool { return c.Hash == hash }), nil
}

// SaveProcessedChunk appends the chunk to the job's list unless already present.
func (fp *Persistence) SaveProcessedChunk(_ context.Context, chunk *models.ProcessedChunk) error {
	if err := persistence.ValidateKey(chunk.JobKey); err != nil {
		return persistence.NewCheckpointError("SaveProcessedChunk", chunk.JobKey, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	chunks, err := fp.readChunks(chunk.JobKey)
	if err != nil {
		return err
	}

	if slices.ContainsFunc(chunks, func(c *models.ProcessedChunk) bool { return c.Hash == chunk.Hash }) {
		return nil
	}

	data, err := json.Marshal(append(chunks, chunk))
	if err != nil {
		return fmt.Errorf("failed to marshal processed chunks of %s: %w", chunk.JobKey, err)
	}

	return fp.write(filepath.Join(fp.root, chunksDir), chunk.JobKey+".json", data)
}

// ProcessedChunks returns the chunks of a job in the order they were processed.
func (fp *Persistence) ProcessedChunks(_ context.Context, jobKey string) ([]*models.ProcessedChunk, error) {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return nil, persistence.NewCheckpointError("ProcessedChunks", jobKey, err)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	chunks, err := fp.readChunks(jobKey)
	if err != nil {
		return nil, err
	}

	if chunks == nil {
		return make([]*models.ProcessedChunk, 0), nil
	}

	return chunks, nil
}

// Reset removes the job's checkpoints and processed chunks.
func (fp *Persistence) Reset(_ context.Context, jobKey string) error {
	if err := persistence.ValidateKey(jobKey); err != nil {
		return persistence.NewCheckpointError("Reset", jobKey, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	files, err := fp.checkpointFiles(jobKey)
	if err != nil {
		return err
	}

	files = append(files, filepath.Join(fp.root, chunksDir, jobKey+".json"))

	for _, file := range files {
		err := os.Remove(file)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", file, err)
		}
	}

	return nil
}
