package topic

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadKeywords reads a keyword set from path. The format follows the file
// extension: .yaml/.yml and .json hold a list of strings, anything else is
// read as plain text with one keyword per line ("#" starts a comment line,
// blank lines are skipped).
func LoadKeywords(path string) (KeywordSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return KeywordSet{}, fmt.Errorf("topic: load %s: %w", path, err)
	}
	defer f.Close()

	var (
		ks   KeywordSet
		perr error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		ks, perr = ParseKeywordsYAML(f)
	case ".json":
		ks, perr = ParseKeywordsJSON(f)
	default:
		ks, perr = ParseKeywordsText(f)
	}
	if perr != nil {
		return KeywordSet{}, fmt.Errorf("topic: load %s: %w", path, perr)
	}
	return ks, nil
}

// ParseKeywordsText reads one keyword per line from r. Blank lines and lines
// starting with "#" are skipped.
func ParseKeywordsText(r io.Reader) (KeywordSet, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return KeywordSet{}, fmt.Errorf("parse: %w", err)
	}
	return NewKeywordSet(words)
}

// ParseKeywordsJSON reads a JSON list of strings from r.
func ParseKeywordsJSON(r io.Reader) (KeywordSet, error) {
	var words []string
	dec := json.NewDecoder(r)
	if err := dec.Decode(&words); err != nil {
		return KeywordSet{}, fmt.Errorf("parse: %w", err)
	}
	if dec.More() {
		return KeywordSet{}, fmt.Errorf("parse: trailing content after keyword list")
	}
	return NewKeywordSet(words)
}

// ParseKeywordsYAML reads a YAML list of strings from r.
func ParseKeywordsYAML(r io.Reader) (KeywordSet, error) {
	var words []string
	if err := yaml.NewDecoder(r).Decode(&words); err != nil {
		return KeywordSet{}, fmt.Errorf("parse: %w", err)
	}
	return NewKeywordSet(words)
}
