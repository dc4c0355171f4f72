package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDir registers persona definitions from every .yaml/.yml file in dir.
// Each file holds a list of personas. Files override builtins with the same
// name. A missing directory is not an error.
func (c *Catalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read persona dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := c.loadFile(path); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var personas []Persona
	if err := yaml.Unmarshal(raw, &personas); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, p := range personas {
		if err := c.Register(p); err != nil {
			return fmt.Errorf("register persona from %s: %w", path, err)
		}
	}
	return nil
}
