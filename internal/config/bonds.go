package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shikwambipolly/how-is-bloomberg/internal/domain"
)

// LoadBonds reads the bond configuration file: a JSON array of objects with
// "id" (terminal identifier) and "label" (report name) keys. A load or parse
// failure is fatal to the whole run, so callers should treat a returned error
// as a configuration error, not a retryable one.
func LoadBonds(path string) (domain.BondList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.BondList{}, fmt.Errorf("config: read bonds file %s: %w", path, err)
	}

	var bonds []domain.Bond
	if err := json.Unmarshal(data, &bonds); err != nil {
		return domain.BondList{}, fmt.Errorf("config: parse bonds file %s: %w", path, err)
	}
	if len(bonds) == 0 {
		return domain.BondList{}, fmt.Errorf("config: bonds file %s contains no bonds", path)
	}
	for i, b := range bonds {
		if b.ID == "" || b.Label == "" {
			return domain.BondList{}, fmt.Errorf("config: bonds file %s: entry %d is missing id or label", path, i)
		}
	}

	return domain.NewBondList(bonds), nil
}
