package apis

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest maps a logical service name to the path of its API description.
type Manifest map[string]string

// DefaultManifest returns the built-in service names, with files under dir.
func DefaultManifest(dir string) Manifest {
	files := map[string]string{
		"klue":     "klue-api.yaml",
		"login":    "login.yaml",
		"seller":   "seller.yaml",
		"item":     "item.yaml",
		"expert":   "expert-api.yaml",
		"cert":     "cert.yaml",
		"announce": "announce.yaml",
		"search":   "search-api.yaml",
		"chatbot":  "chatbot.yaml",
		"market":   "market.yaml",
	}

	m := make(Manifest, len(files))
	for name, file := range files {
		m[name] = filepath.Join(dir, file)
	}

	return m
}

// LoadManifest reads a YAML mapping of service name to description file.
// Relative file paths are resolved against the manifest's directory.
func LoadManifest(path string) (Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("cannot unmarshal %s file: %w", path, err)
	}

	dir := filepath.Dir(path)
	for name, file := range m {
		if !filepath.IsAbs(file) {
			m[name] = filepath.Join(dir, file)
		}
	}

	return m, nil
}
