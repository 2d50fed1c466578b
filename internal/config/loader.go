package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sitecrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads site configurations from a YAML file.
// It returns ErrConfigNotFound when the file does not exist; whether that is
// an error depends on whether the user named the file explicitly. Unknown
// keys and invalid scope modes are rejected so typos do not go unnoticed.
func LoadConfigFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // the path is chosen by the user
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cf := File{Sites: map[string]SiteConfig{}}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = map[string]SiteConfig{}
	}
	if err := cf.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cf, nil
}

// SearchPath lists the files FindConfigFile tries, in order: .sitecrawl in
// the current directory, config.yaml in the XDG config directory, and
// .sitecrawl in the home directory. Locations that cannot be determined are
// left out.
func SearchPath() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	paths = append(paths, filepath.Join(XDGConfigDir(), "config.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return paths
}

// FindConfigFile returns the configuration file to use, or "" if there is
// none. An explicit configPath is only checked for existence; otherwise the
// first existing file on SearchPath wins.
func FindConfigFile(configPath string) string {
	candidates := SearchPath()
	if configPath != "" {
		candidates = []string{configPath}
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
