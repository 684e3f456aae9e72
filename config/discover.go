package config

import (
	"os"
	"path/filepath"
)

// Discover looks for config.{yaml,yml,json,toml} in dir, then in dir/configs
// and dir/conf, and returns the first one found or "".
func Discover(dir string) string {
	for _, sub := range []string{"", "configs", "conf"} {
		for _, ext := range []string{"yaml", "yml", "json", "toml"} {
			file := filepath.Join(dir, sub, "config."+ext)
			if fileExists(file) {
				return file
			}
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
