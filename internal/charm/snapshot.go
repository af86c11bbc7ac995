// ABOUTME: Push and pull of vector store artifacts through a key-value mirror
// ABOUTME: Both artifacts are stored under snapshot: keys with a checksum manifest
package charm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/libraryqa/internal/storage"
)

// SnapshotPrefix namespaces every mirrored artifact
const SnapshotPrefix = "snapshot:"

// ErrNoSnapshot means the mirror holds no pushed snapshot
var ErrNoSnapshot = errors.New("no snapshot in mirror")

// KV is the subset of a key-value store the mirror needs
type KV interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
}

// Manifest describes a mirrored snapshot
type Manifest struct {
	PushedAt  time.Time         `json:"pushed_at"`
	Checksums map[string]string `json:"checksums"`
	Sizes     map[string]int    `json:"sizes"`
}

var artifacts = []string{storage.ChunksFile, storage.VectorsFile}

// ArtifactKey is the mirror key of one artifact
func ArtifactKey(name string) string {
	return SnapshotPrefix + name
}

// ManifestKey is the mirror key of the manifest
func ManifestKey() string {
	return SnapshotPrefix + "manifest"
}

// PushSnapshot copies the saved artifacts in dir into the mirror.
// The manifest is written last so a partial push is never pulled.
func PushSnapshot(store KV, dir string) (*Manifest, error) {
	manifest := &Manifest{
		PushedAt:  time.Now().UTC(),
		Checksums: make(map[string]string, len(artifacts)),
		Sizes:     make(map[string]int, len(artifacts)),
	}

	for _, name := range artifacts {
		data, err := os.ReadFile(filepath.Join(dir, name)) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if err := store.Set(ArtifactKey(name), data); err != nil {
			return nil, err
		}
		manifest.Checksums[name] = checksum(data)
		manifest.Sizes[name] = len(data)
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := store.Set(ManifestKey(), data); err != nil {
		return nil, err
	}
	return manifest, nil
}

// PullSnapshot writes the mirrored artifacts into dir after verifying their
// checksums. Nothing is written unless every artifact verifies.
func PullSnapshot(store KV, dir string) (*Manifest, error) {
	raw, err := store.Get(ManifestKey())
	if err != nil || raw == nil {
		return nil, ErrNoSnapshot
	}

	var manifest Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	contents := make(map[string][]byte, len(artifacts))
	for _, name := range artifacts {
		data, err := store.Get(ArtifactKey(name))
		if err != nil || data == nil {
			return nil, fmt.Errorf("%w: missing %s", ErrNoSnapshot, name)
		}
		if got := checksum(data); got != manifest.Checksums[name] {
			return nil, fmt.Errorf("checksum mismatch for %s", name)
		}
		contents[name] = data
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	for _, name := range artifacts {
		if err := storage.WriteFileAtomic(filepath.Join(dir, name), contents[name]); err != nil {
			return nil, err
		}
	}
	return &manifest, nil
}

// Deleter removes keys from a key-value store
type Deleter interface {
	Delete(key string) error
}

// DeleteSnapshot removes a mirrored snapshot. The manifest goes first so an
// interrupted delete never leaves a pullable half snapshot.
func DeleteSnapshot(store Deleter) error {
	keys := []string{ManifestKey()}
	for _, name := range artifacts {
		keys = append(keys, ArtifactKey(name))
	}
	for _, key := range keys {
		if err := store.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
