package knowledge

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads an answer base from path. .yaml/.yml files go through
// [ParseYAML], everything else through [ParseJSON].
func Load(path string) (*Base, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("knowledge: load %s: %w", path, err)
	}
	defer f.Close()

	var (
		base *Base
		perr error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		base, perr = ParseYAML(f)
	default:
		base, perr = ParseJSON(f)
	}
	if perr != nil {
		return nil, fmt.Errorf("knowledge: load %s: %w", path, perr)
	}
	return base, nil
}

// jsonEntry is the list-form element shape.
type jsonEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ParseJSON reads an answer base from r. Two document shapes are accepted:
// a list of {"question": ..., "answer": ...} objects, or a single object
// mapping questions to answers. The object form keeps document order.
func ParseJSON(r io.Reader) (*Base, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("parse: expected a JSON list or object, got %v", tok)
	}

	var entries []Entry
	switch delim {
	case '[':
		for dec.More() {
			var e jsonEntry
			if err := dec.Decode(&e); err != nil {
				return nil, fmt.Errorf("parse: entry %d: %w", len(entries), err)
			}
			entries = append(entries, Entry{Question: e.Question, Answer: e.Answer})
		}
	case '{':
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("parse: %w", err)
			}
			question, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("parse: expected a string key, got %v", keyTok)
			}
			var answer string
			if err := dec.Decode(&answer); err != nil {
				return nil, fmt.Errorf("parse: answer for %q: %w", question, err)
			}
			entries = append(entries, Entry{Question: question, Answer: answer})
		}
	default:
		return nil, fmt.Errorf("parse: expected a JSON list or object, got %v", delim)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return NewBase(entries)
}

// ParseYAML reads a YAML answer base from r. Same shapes as [ParseJSON]: a
// sequence of question/answer mappings, or one mapping of questions to
// answers in document order.
func ParseYAML(r io.Reader) (*Base, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("parse: empty document")
	}
	root := doc.Content[0]

	var entries []Entry
	switch root.Kind {
	case yaml.SequenceNode:
		for i, item := range root.Content {
			var e struct {
				Question string `yaml:"question"`
				Answer   string `yaml:"answer"`
			}
			if err := item.Decode(&e); err != nil {
				return nil, fmt.Errorf("parse: entry %d (line %d): %w", i, item.Line, err)
			}
			entries = append(entries, Entry{Question: e.Question, Answer: e.Answer})
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			keyNode, valNode := root.Content[i], root.Content[i+1]
			var question, answer string
			if err := keyNode.Decode(&question); err != nil {
				return nil, fmt.Errorf("parse: line %d: %w", keyNode.Line, err)
			}
			if err := valNode.Decode(&answer); err != nil {
				return nil, fmt.Errorf("parse: answer for %q: %w", question, err)
			}
			entries = append(entries, Entry{Question: question, Answer: answer})
		}
	default:
		return nil, fmt.Errorf("parse: expected a sequence or mapping at the document root")
	}

	return NewBase(entries)
}
