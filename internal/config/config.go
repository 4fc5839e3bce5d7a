package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	env "github.com/caarlos0/env/v11"
)

// FamilyFile is where a resource tree records its family, relative to the
// base directory.
const FamilyFile = "etc/family"

// ErrNoFamily is returned when no source names the family.
var ErrNoFamily = errors.New("set family name and re-run the command")

// Env holds the settings read from the environment.
type Env struct {
	Family     string `env:"family"`
	OutFormat  string `env:"RESOURCEMODEL_OUTFMT" envDefault:"json"`
	MaxRefHops int    `env:"RESOURCEMODEL_MAX_REF_HOPS" envDefault:"64"`
}

// FromEnv parses the environment into an Env with defaults applied.
func FromEnv() (*Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if e.MaxRefHops <= 0 {
		return nil, fmt.Errorf("RESOURCEMODEL_MAX_REF_HOPS must be positive, got %d", e.MaxRefHops)
	}
	return &e, nil
}

// ReadFamily returns the trimmed contents of {baseDir}/etc/family, or ""
// when the file does not exist.
func ReadFamily(baseDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, FamilyFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read family: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ResolveFamily picks the family from the flag, then the environment, then
// the family file under baseDir.
func ResolveFamily(flag string, e *Env, baseDir string) (string, error) {
	if f := strings.TrimSpace(flag); f != "" {
		return f, nil
	}
	if e != nil {
		if f := strings.TrimSpace(e.Family); f != "" {
			return f, nil
		}
	}
	f, err := ReadFamily(baseDir)
	if err != nil {
		return "", err
	}
	if f == "" {
		return "", ErrNoFamily
	}
	return f, nil
}
