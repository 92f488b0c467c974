package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands $VAR and ${VAR} references, then a leading ~, in a
// path taken from a flag, the environment or the config file. ~user forms
// are left as they are.
func ExpandPath(path string) string {
	path = os.ExpandEnv(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}
