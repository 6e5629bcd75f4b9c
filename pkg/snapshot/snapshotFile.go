package snapshot

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stakewell/stakedash/internal/version"
)

type SnapshotFile struct {
	Dir              string
	SnapshotFileName string
	CreatedTimestamp time.Time
	Version          string
	SchemaName       string
}

type SnapshotMetadata struct {
	Version   string `json:"version"`
	Schema    string `json:"schema"`
	Timestamp string `json:"timestamp"`
	FileName  string `json:"fileName"`
}

func newSnapshotFile(path string, schemaName string) *SnapshotFile {
	return &SnapshotFile{
		Dir:              filepath.Dir(path),
		SnapshotFileName: filepath.Base(path),
		CreatedTimestamp: time.Now().UTC(),
		Version:          version.GetVersion(),
		SchemaName:       schemaName,
	}
}

func (sf *SnapshotFile) HashExt() string {
	return "sha256"
}

func (sf *SnapshotFile) HashFileName() string {
	return fmt.Sprintf("%s.%s", sf.SnapshotFileName, sf.HashExt())
}

func (sf *SnapshotFile) FullPath() string {
	return filepath.Join(sf.Dir, sf.SnapshotFileName)
}

func (sf *SnapshotFile) HashFilePath() string {
	return filepath.Join(sf.Dir, sf.HashFileName())
}

func (sf *SnapshotFile) MetadataFilePath() string {
	return filepath.Join(sf.Dir, fmt.Sprintf("%s.metadata.json", sf.SnapshotFileName))
}

// ValidateHash compares the dump with its hash file. The hash file layout is "<hash> <filename>".
func (sf *SnapshotFile) ValidateHash() error {
	hashFile, err := os.ReadFile(sf.HashFilePath())
	if err != nil {
		return fmt.Errorf("error reading hash file: %w", err)
	}
	fields := strings.Fields(string(hashFile))
	if len(fields) == 0 {
		return fmt.Errorf("hash file '%s' is empty", sf.HashFilePath())
	}

	sum, err := sf.GenerateSnapshotHash()
	if err != nil {
		return fmt.Errorf("error generating snapshot hash: %w", err)
	}

	if sum != fields[0] {
		return fmt.Errorf("hashes do not match: %s != %s", sum, fields[0])
	}
	return nil
}

func (sf *SnapshotFile) GenerateSnapshotHash() (string, error) {
	dumpFile, err := os.Open(sf.FullPath())
	if err != nil {
		return "", fmt.Errorf("error opening snapshot file: %w", err)
	}
	defer dumpFile.Close()

	hash := sha256.New()
	if _, err := io.CopyBuffer(hash, dumpFile, make([]byte, 1024*1024)); err != nil {
		return "", fmt.Errorf("error reading snapshot file: %w", err)
	}

	return strings.TrimPrefix(hexutil.Encode(hash.Sum(nil)), "0x"), nil
}

func (sf *SnapshotFile) GenerateAndSaveSnapshotHash() error {
	sum, err := sf.GenerateSnapshotHash()
	if err != nil {
		return err
	}

	content := fmt.Sprintf("%s %s\n", sum, sf.SnapshotFileName)
	if err := os.WriteFile(sf.HashFilePath(), []byte(content), 0644); err != nil {
		return fmt.Errorf("error writing hash file: %w", err)
	}
	return nil
}

func (sf *SnapshotFile) GetMetadata() *SnapshotMetadata {
	return &SnapshotMetadata{
		Version:   sf.Version,
		Schema:    sf.SchemaName,
		Timestamp: sf.CreatedTimestamp.Format(time.RFC3339),
		FileName:  sf.SnapshotFileName,
	}
}

func (sf *SnapshotFile) GenerateAndSaveMetadata() error {
	metadataJson, err := json.MarshalIndent(sf.GetMetadata(), "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling metadata: %w", err)
	}
	if err := os.WriteFile(sf.MetadataFilePath(), metadataJson, 0644); err != nil {
		return fmt.Errorf("error writing metadata file: %w", err)
	}
	return nil
}

func (sf *SnapshotFile) ClearFiles() {
	_ = os.Remove(sf.FullPath())
	_ = os.Remove(sf.HashFilePath())
	_ = os.Remove(sf.MetadataFilePath())
}
