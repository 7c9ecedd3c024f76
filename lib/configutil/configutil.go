package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// ReadConfig reads a json5 configuration file, merging a `<name>.local.<ext>`
// override on top of `<name>.<ext>` when one exists next to it. `name` must
// come with a file extension. Returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T

	base, err := readInto(&out, name)
	if err != nil {
		return out, err
	}

	local, err := readLocal(&out, name)
	if err != nil {
		return out, err
	}

	if !base && !local {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively behaves like ReadConfig but walks up the filesystem from
// the cwd until it finds a matching configuration file. This lets tests deep
// inside the package tree pick up a config at the repository root.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	current, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return zero, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return zero, os.ErrNotExist
		}
		current = parent
	}
}

func readInto[T any](out *T, path string) (bool, error) {
	contents, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func readLocal[T any](out *T, path string) (bool, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	localPath := filepath.Join(dir, fmt.Sprintf("%s.local%s", stem, ext))

	var override T
	found, err := readInto(&override, localPath)
	if err != nil || !found {
		return false, err
	}

	err = mergo.Merge(out, override, mergo.WithOverride)
	if err != nil {
		return false, err
	}
	slog.Info("merging config with local overrides", "local", localPath)
	return true, nil
}
