package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/jask/cloudanchors/internal/shortcode"
)

const recentFile = "recent_codes.json"

// MaxRecent bounds how many hosted codes are remembered.
const MaxRecent = 8

// Dir is where preference files live. Tests point it at a temp dir.
var Dir = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cloudanchors"), nil
}

func recentPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, recentFile), nil
}

// SaveRecentCodes writes codes newest first, deduplicated and capped at MaxRecent.
func SaveRecentCodes(codes []shortcode.Code) error {
	path, err := recentPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(trim(codes), "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func LoadRecentCodes() ([]shortcode.Code, error) {
	path, err := recentPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var codes []shortcode.Code
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, err
	}
	return trim(codes), nil
}

// RememberCode puts code at the front of the stored list.
func RememberCode(code shortcode.Code) ([]shortcode.Code, error) {
	codes, err := LoadRecentCodes()
	if err != nil {
		codes = nil
	}
	codes = append([]shortcode.Code{code}, codes...)
	codes = trim(codes)
	return codes, SaveRecentCodes(codes)
}

func trim(codes []shortcode.Code) []shortcode.Code {
	out := make([]shortcode.Code, 0, len(codes))
	for _, c := range codes {
		if !c.Valid() || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
		if len(out) == MaxRecent {
			break
		}
	}
	return out
}
