package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"twdataset/pkg/logger"
)

// Version of the checkpoint layout
const Version = 1

// Checkpoint records how far a dataset generation has progressed
type Checkpoint struct {
	RunID         string    `json:"run_id"`
	Generation    int       `json:"generation"`
	DatasetDir    string    `json:"dataset_dir"`
	Topics        []string  `json:"topics"`
	Fetched       bool      `json:"fetched"`
	RefreshesDone int       `json:"refreshes_done"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int       `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a manager for the checkpoint called name
func NewManager(name string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(checkpointsDir, fmt.Sprintf("%s.checkpoint.json", name)),
		logger:         logger.GetLogger(),
	}, nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// New returns an unsaved checkpoint for a new generation with a fresh run id
func New(generation int, datasetDir string, topics []string) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		RunID:      uuid.NewString(),
		Generation: generation,
		DatasetDir: datasetDir,
		Topics:     append([]string(nil), topics...),
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    Version,
	}
}

// Create starts and saves a checkpoint for a new generation
func (m *Manager) Create(generation int, datasetDir string, topics []string) (*Checkpoint, error) {
	checkpoint := New(generation, datasetDir, topics)

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id":     checkpoint.RunID,
		"generation": generation,
		"path":       m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint; it returns nil when there is none
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", checkpoint.Version)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":         checkpoint.RunID,
		"generation":     checkpoint.Generation,
		"refreshes_done": checkpoint.RefreshesDone,
		"updated_at":     checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"generation":     checkpoint.Generation,
		"fetched":        checkpoint.Fetched,
		"refreshes_done": checkpoint.RefreshesDone,
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordFetch marks the initial fetch of the generation as written
func (m *Manager) RecordFetch(checkpoint *Checkpoint) error {
	checkpoint.Fetched = true
	return m.Save(checkpoint)
}

// RecordRefresh counts one completed refresh cycle
func (m *Manager) RecordRefresh(checkpoint *Checkpoint) error {
	checkpoint.RefreshesDone++
	return m.Save(checkpoint)
}

// Matches reports whether the checkpoint was taken for the same topic labels
// in the same order
func (checkpoint *Checkpoint) Matches(topics []string) bool {
	if len(topics) != len(checkpoint.Topics) {
		return false
	}
	for i := range topics {
		if topics[i] != checkpoint.Topics[i] {
			return false
		}
	}
	return true
}

// GetCheckpointInfo returns a summary of the checkpoint
func (m *Manager) GetCheckpointInfo() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"run_id":         checkpoint.RunID,
		"generation":     checkpoint.Generation,
		"dataset_dir":    checkpoint.DatasetDir,
		"fetched":        checkpoint.Fetched,
		"refreshes_done": checkpoint.RefreshesDone,
		"updated_at":     checkpoint.UpdatedAt,
		"age":            time.Since(checkpoint.UpdatedAt),
	}, nil
}

// BackupCheckpoint creates a backup of the current checkpoint
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(m.checkpointPath + ".backup")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "twdataset")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "twdataset")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "twdataset")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "twdataset")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
