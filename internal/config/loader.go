package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/imgshare/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".imgshare"

// File is the structure of the .imgshare YAML file. Pointer fields
// distinguish "not set" from a zero value so the file only overrides what
// it names.
type File struct {
	MinImageSize    *int64   `yaml:"min_image_size,omitempty"`
	MaxThreads      *int     `yaml:"max_threads,omitempty"`
	MaxImgPerDomain *int     `yaml:"max_img_per_domain,omitempty"`
	Proxies         []string `yaml:"proxies,omitempty"`
	DataFolder      *string  `yaml:"data_folder,omitempty"`
	Archive         []string `yaml:"archive,omitempty"`
	HTMLParsing     *bool    `yaml:"html_parsing,omitempty"`
	URLFile         *string  `yaml:"url_file,omitempty"`
	ImagesFolder    *string  `yaml:"images_folder,omitempty"`
	UserAgent       *string  `yaml:"user_agent,omitempty"`

	// Timeout is a Go duration string such as "60s" or "2m".
	Timeout *string `yaml:"timeout,omitempty"`

	// OnlyCompareExistingData makes scan behave like compare.
	OnlyCompareExistingData *bool `yaml:"only_compare_existing_data,omitempty"`
}

// LoadConfigFile reads and parses a YAML configuration file.
// A missing file yields ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("%w: %w", model.ErrConfiguration, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrConfiguration, path, err)
	}
	return &f, nil
}

// Apply copies every setting present in the file onto c.
func (f *File) Apply(c *Config) error {
	if f.MinImageSize != nil {
		c.MinImageSize = *f.MinImageSize
	}
	if f.MaxThreads != nil {
		c.MaxThreads = *f.MaxThreads
	}
	if f.MaxImgPerDomain != nil {
		c.MaxImgPerDomain = *f.MaxImgPerDomain
	}
	if len(f.Proxies) > 0 {
		c.Proxies = append([]string(nil), f.Proxies...)
	}
	if f.DataFolder != nil {
		c.DataFolder = *f.DataFolder
	}
	if len(f.Archive) > 0 {
		c.Archive = append([]string(nil), f.Archive...)
	}
	if f.HTMLParsing != nil {
		c.HTMLParsing = *f.HTMLParsing
	}
	if f.URLFile != nil {
		c.URLFile = *f.URLFile
	}
	if f.ImagesFolder != nil {
		c.ImagesFolder = *f.ImagesFolder
	}
	if f.UserAgent != nil {
		c.UserAgent = *f.UserAgent
	}
	if f.OnlyCompareExistingData != nil {
		c.OnlyCompareExistingData = *f.OnlyCompareExistingData
	}
	if f.Timeout != nil {
		d, err := time.ParseDuration(*f.Timeout)
		if err != nil {
			return fmt.Errorf("%w: timeout %q: %w", model.ErrConfiguration, *f.Timeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// FindConfigFile searches for the configuration file in this order:
//  1. configPath, if specified
//  2. .imgshare in the current directory
//  3. .imgshare in the user's home directory
//  4. config.yaml in the XDG config directory
//
// It returns an empty string when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// Load finds the config file for c.ConfigFilePath and applies it to c.
// An explicitly named file must exist; an implicit one is optional.
// It returns the path that was applied, or "".
func Load(c *Config) (string, error) {
	path := FindConfigFile(c.ConfigFilePath)
	if path == "" {
		if c.ConfigFilePath != "" {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, c.ConfigFilePath)
		}
		return "", nil
	}

	f, err := LoadConfigFile(path)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) && c.ConfigFilePath == "" {
			return "", nil
		}
		return "", err
	}
	if err := f.Apply(c); err != nil {
		return "", err
	}
	return path, nil
}
