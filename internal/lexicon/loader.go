package lexicon

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a pronunciation table from path. The format is chosen by
// extension: .yaml/.yml is parsed as YAML, anything else as JSON. Both
// formats share the same shape, a mapping from canonical term to either a
// single variant string or a list of variant strings:
//
//	{"espresso": ["expresso", "exspresso"], "latte": "lattay"}
//
// The string-or-list value shape is resolved here, at load time; the
// resulting [Lexicon] always carries a variant list per entry.
func Load(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: load %s: %w", path, err)
	}
	defer f.Close()

	var lex *Lexicon
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		lex, err = ParseYAML(f)
	default:
		lex, err = ParseJSON(f)
	}
	if err != nil {
		return nil, fmt.Errorf("lexicon: load %s: %w", path, err)
	}
	return lex, nil
}

// ParseJSON reads a JSON pronunciation table from r.
//
// The object is walked token by token rather than decoded into a map, so
// entry order follows the document. Order matters: it is the tie-break for
// equally long variants in the literal pass and for equally similar
// canonicals in the fuzzy pass.
func ParseJSON(r io.Reader) (*Lexicon, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("parse: expected a JSON object, got %v", tok)
	}

	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		canonical, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("parse: expected a string key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: value for %q: %w", canonical, err)
		}
		variants, err := variantsFromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("parse: value for %q: %w", canonical, err)
		}
		entries = append(entries, Entry{Canonical: canonical, Variants: variants})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return New(entries)
}

// variantsFromJSON resolves the string-or-list value shape.
func variantsFromJSON(raw json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	return nil, fmt.Errorf("must be a string or a list of strings")
}

// ParseYAML reads a YAML pronunciation table from r. Same shape and ordering
// guarantees as [ParseJSON].
func ParseYAML(r io.Reader) (*Lexicon, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("parse: empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse: expected a mapping at the document root")
	}

	var entries []Entry
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode := root.Content[i]
		valNode := root.Content[i+1]

		var canonical string
		if err := keyNode.Decode(&canonical); err != nil {
			return nil, fmt.Errorf("parse: line %d: %w", keyNode.Line, err)
		}

		var variants []string
		switch valNode.Kind {
		case yaml.ScalarNode:
			var single string
			if err := valNode.Decode(&single); err != nil {
				return nil, fmt.Errorf("parse: value for %q: %w", canonical, err)
			}
			variants = []string{single}
		case yaml.SequenceNode:
			if err := valNode.Decode(&variants); err != nil {
				return nil, fmt.Errorf("parse: value for %q: %w", canonical, err)
			}
		default:
			return nil, fmt.Errorf("parse: value for %q must be a string or a list of strings", canonical)
		}
		entries = append(entries, Entry{Canonical: canonical, Variants: variants})
	}
	return New(entries)
}
