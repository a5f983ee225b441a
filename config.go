package rtl

import (
	"io/ioutil"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// FileConfig is the on-disk simulator configuration.
//
//	design = "rv32"
//	backend = "native"
//	allow-fallback = false
//	cycles = 1000
//	watch = ["pc", "halt"]
//
//	[image]
//	memory = "mem"
//	path = "boot.bin"
//	offset = 0
//
type FileConfig struct {
	Design        string      `toml:"design"`
	Backend       string      `toml:"backend"`
	AllowFallback bool        `toml:"allow-fallback"`
	Cycles        int         `toml:"cycles"`
	Watch         []string    `toml:"watch"`
	Image         ImageConfig `toml:"image"`
}

// ImageConfig names a memory image to load before the run starts.
type ImageConfig struct {
	Memory string `toml:"memory"`
	Path   string `toml:"path"`
	Offset int    `toml:"offset"`
}

// LoadConfig reads and validates a TOML simulator configuration.
//
func LoadConfig(path string) (*FileConfig, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return ParseConfig(buf)
}

// ParseConfig parses a TOML simulator configuration.
//
func ParseConfig(buf []byte) (*FileConfig, error) {
	fc := &FileConfig{Backend: "interp", Cycles: 1}
	if err := toml.Unmarshal(buf, fc); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if _, err := ParseBackend(fc.Backend); err != nil {
		return nil, err
	}
	if fc.Cycles < 0 {
		return nil, errors.Errorf("cycles must not be negative, got %d", fc.Cycles)
	}
	if fc.Image.Path != "" && fc.Image.Memory == "" {
		return nil, errors.New("image.path set without image.memory")
	}
	return fc, nil
}

// SimConfig converts the file configuration into a backend selection.
//
func (fc *FileConfig) SimConfig() Config {
	k, _ := ParseBackend(fc.Backend)
	return Config{Backend: k, AllowFallback: fc.AllowFallback}
}
