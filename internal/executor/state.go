package executor

import (
	"encoding/json"
	"log"
	"os"
)

// loadEntities restores a handler's processed entities from disk.
// A missing file is a fresh start; an unreadable one is logged and
// ignored, since every entity can be rebuilt from the raw files.
func loadEntities[T any](path string, dst *map[string]T, logger *log.Logger) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Printf("executor: cannot read %s: %v", path, err)
		}
		return
	}
	loaded := make(map[string]T)
	if err := json.Unmarshal(raw, &loaded); err != nil {
		logger.Printf("executor: cannot decode %s, rebuilding from raw files: %v", path, err)
		return
	}
	*dst = loaded
}
