package memstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/khaothi-ai/khaothi/internal/domain"
)

// Artifact file names inside an index directory.
const (
	ChunksFile  = "chunks.json"
	VectorsFile = "vectors.bin"
	SafetyFile  = "safety.bin"
)

const (
	vectorMagic   = "KTVX"
	vectorVersion = 1
)

// WriteVectors encodes embedding rows into the binary artifact format:
// a 4-byte magic, then version, dimension and row count as little-endian
// uint32, then the rows as little-endian float32 values.
func WriteVectors(path string, dim int, rows [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(vectorMagic); err != nil {
		return err
	}
	for _, v := range []uint32{vectorVersion, uint32(dim), uint32(len(rows))} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	for i, row := range rows {
		if len(row) != dim {
			return domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
				fmt.Sprintf("row %d has %d dimensions, expected %d", i, len(row), dim),
				domain.ErrDimensionMismatch)
		}
		if err := binary.Write(w, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// ReadVectors decodes a vector artifact written by WriteVectors.
func ReadVectors(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(vectorMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return 0, nil, corruptArtifact(path, err)
	}
	if string(magic) != vectorMagic {
		return 0, nil, corruptArtifact(path, fmt.Errorf("bad magic %q", magic))
	}

	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return 0, nil, corruptArtifact(path, err)
		}
	}
	if version != vectorVersion {
		return 0, nil, corruptArtifact(path, fmt.Errorf("unsupported version %d", version))
	}
	if dim == 0 {
		return 0, nil, corruptArtifact(path, fmt.Errorf("zero dimension"))
	}

	rows := make([][]float32, count)
	for i := range rows {
		row := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return 0, nil, corruptArtifact(path, err)
		}
		rows[i] = row
	}
	return int(dim), rows, nil
}

// WriteChunks stores chunk metadata as a JSON array. Embeddings are kept in
// the vector artifact, so they are stripped here.
func WriteChunks(path string, chunks []domain.Chunk) error {
	stripped := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = nil
		stripped[i] = c
	}

	data, err := json.MarshalIndent(stripped, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadChunks loads and normalizes chunk metadata written by WriteChunks.
func ReadChunks(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var chunks []domain.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, corruptArtifact(path, err)
	}
	for i := range chunks {
		chunks[i].Normalize()
		if err := domain.ValidateChunk(&chunks[i]); err != nil {
			return nil, corruptArtifact(path, err)
		}
	}
	return chunks, nil
}

func corruptArtifact(path string, err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeConfig,
		fmt.Sprintf("corrupt artifact %s", path), err)
}
