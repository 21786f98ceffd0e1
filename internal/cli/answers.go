package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	classifytier "tax-intake/internal/workers/questionnaire/classify-tier"
)

// loadInput reads an answers file. Both a bare answers object and the worker's
// {"answers": {...}} envelope are accepted. YAML is converted to JSON first so
// every input goes through the same schema validation.
func loadInput(path string) (*classifytier.Input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("%s is empty", path)
	}

	if _, wrapped := doc["answers"]; !wrapped {
		doc = map[string]interface{}{"answers": doc}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return classifytier.ParseInput(body)
}
