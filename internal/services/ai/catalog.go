package ai

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CatalogEntry describes one deployable model in models.json. Paths are
// relative to the model directory. Mode declares the vocabulary mode up
// front instead of sniffing it from the file name.
type CatalogEntry struct {
	ID        string `json:"id"`
	Weights   string `json:"weights"`
	Config    string `json:"config,omitempty"`
	Classes   string `json:"classes"` // text file, one class label per line
	Mode      string `json:"mode"`    // "fixed" or "dynamic"
	InputSize int    `json:"input_size,omitempty"`
}

// Catalog is the parsed models.json manifest of a model directory.
type Catalog struct {
	dir     string
	entries map[string]CatalogEntry
}

// LoadCatalog reads models.json from dir.
func LoadCatalog(dir string) (*Catalog, error) {
	path := filepath.Join(dir, "models.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}

	var manifest struct {
		Models []CatalogEntry `json:"models"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(manifest.Models) == 0 {
		return nil, fmt.Errorf("%s lists no models", path)
	}

	catalog := &Catalog{dir: dir, entries: make(map[string]CatalogEntry, len(manifest.Models))}
	for _, entry := range manifest.Models {
		if entry.ID == "" || entry.Weights == "" {
			return nil, fmt.Errorf("%s: model entries need id and weights", path)
		}
		if entry.Mode != "fixed" && entry.Mode != "dynamic" {
			return nil, fmt.Errorf("%s: model %q has invalid mode %q", path, entry.ID, entry.Mode)
		}
		if entry.InputSize == 0 {
			entry.InputSize = 300
		}
		catalog.entries[entry.ID] = entry
	}
	return catalog, nil
}

// Entry returns the catalog entry for a model id.
func (c *Catalog) Entry(id string) (CatalogEntry, error) {
	entry, ok := c.entries[id]
	if !ok {
		return CatalogEntry{}, fmt.Errorf("model %q not in catalog", id)
	}
	return entry, nil
}

// Classes returns the class list of a model, in file order.
func (c *Catalog) Classes(id string) ([]string, error) {
	entry, err := c.Entry(id)
	if err != nil {
		return nil, err
	}
	return readLabelFile(filepath.Join(c.dir, entry.Classes))
}

func (c *Catalog) resolve(name string) string {
	return filepath.Join(c.dir, name)
}

func readLabelFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class list: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class list: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("class list %s is empty", path)
	}
	return labels, nil
}
