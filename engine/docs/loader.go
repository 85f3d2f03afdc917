// Package docs implements retrieval over dealership business documents:
// directory loading, chunking, and a lexical+dense ensemble retriever with
// diversity reranking.
package docs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Chunk is one retrievable piece of a document.
type Chunk struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Filename string `json:"filename"`
	ChunkID  int    `json:"chunk_id"`
}

// LoaderOptions configures chunking during directory loading.
type LoaderOptions struct {
	ChunkSize    int
	ChunkOverlap int
}

// LoadDir reads .md and .txt files from dir in sorted filename order and
// splits them into chunks. Hidden files and subdirectories are skipped.
// Markdown splits at headers; plain text splits by size with overlap.
func LoadDir(dir string, opts LoaderOptions) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("docs: read dir %s: %w", dir, err)
	}

	var chunks []Chunk
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".md" && ext != ".txt" {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("docs: read %s: %w", path, err)
		}

		var parts []string
		if ext == ".md" {
			parts = SplitMarkdown(string(data))
		} else {
			parts = SplitText(string(data), opts.ChunkSize, opts.ChunkOverlap)
		}
		for i, p := range parts {
			chunks = append(chunks, Chunk{
				Text:     p,
				Source:   path,
				Filename: name,
				ChunkID:  i,
			})
		}
	}
	return chunks, nil
}
