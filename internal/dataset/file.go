package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
	"github.com/lllypuk/dwidmapper/internal/domain/user"
)

// FileSource reads the directory from a JSON or YAML file. The document is
// either an object keyed by username or an array of records; records carry
// userID and userName.
type FileSource struct {
	path  string
	order KeyOrder
	fsys  fs.FS
}

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithKeyOrder sets the order of records decoded from an object document.
func WithKeyOrder(order KeyOrder) FileOption {
	return func(s *FileSource) {
		s.order = order
	}
}

// WithFS reads the file from fsys instead of the OS filesystem.
func WithFS(fsys fs.FS) FileOption {
	return func(s *FileSource) {
		s.fsys = fsys
	}
}

// NewFileSource creates a file source for path.
func NewFileSource(path string, opts ...FileOption) *FileSource {
	s := &FileSource{
		path:  path,
		order: KeyOrderDocument,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *FileSource) Name() string {
	return "file:" + s.path
}

// Load implements Source.
func (s *FileSource) Load(_ context.Context) ([]user.Record, error) {
	data, err := s.read()
	if err != nil {
		return nil, err
	}

	var entries []keyedRecord
	switch ext := strings.ToLower(filepath.Ext(s.path)); ext {
	case ".json":
		entries, err = decodeJSON(data)
	case ".yaml", ".yml":
		entries, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	return sortKeyed(entries, s.order), nil
}

func (s *FileSource) read() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if s.fsys != nil {
		data, err = fs.ReadFile(s.fsys, s.path)
	} else {
		data, err = os.ReadFile(s.path)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

// decodeJSON decodes a JSON dataset keeping the document order of keys.
func decodeJSON(data []byte) ([]keyedRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse json dataset: %w", err)
	}

	var raws []rawEntry
	switch tok {
	case json.Delim('{'):
		// A repeated key keeps the position of its first occurrence and the
		// value of its last one.
		seen := make(map[string]int)
		for dec.More() {
			keyTok, keyErr := dec.Token()
			if keyErr != nil {
				return nil, fmt.Errorf("parse json dataset: %w", keyErr)
			}
			key, _ := keyTok.(string)

			var raw json.RawMessage
			if err = dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("parse json dataset: %w", err)
			}
			if i, ok := seen[key]; ok {
				raws[i].raw = raw
				continue
			}
			seen[key] = len(raws)
			raws = append(raws, rawEntry{key: key, raw: raw})
		}
	case json.Delim('['):
		for dec.More() {
			var raw json.RawMessage
			if err = dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("parse json dataset: %w", err)
			}
			raws = append(raws, rawEntry{raw: raw})
		}
	default:
		return nil, fmt.Errorf("%w: json dataset must be an object or an array", errs.ErrUnsupportedFormat)
	}

	if _, err = dec.Token(); err != nil {
		return nil, fmt.Errorf("parse json dataset: %w", err)
	}
	if _, err = dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse json dataset: trailing data after document")
	}

	entries := make([]keyedRecord, 0, len(raws))
	for _, r := range raws {
		rec, recErr := user.DecodeRecordJSON(r.raw, r.key)
		if recErr != nil {
			return nil, recErr
		}
		entry, keyErr := keyed(r.key, rec)
		if keyErr != nil {
			return nil, keyErr
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// rawEntry is an undecoded JSON record with its object key, if any.
type rawEntry struct {
	key string
	raw json.RawMessage
}

// yamlRecord is the YAML shape of a record. UserID stays a node so that its
// scalar kind can be inspected.
type yamlRecord struct {
	UserID   yaml.Node `yaml:"userID"`
	UserName *string   `yaml:"userName"`
}

// decodeYAML decodes a YAML dataset keeping the document order of keys.
func decodeYAML(data []byte) ([]keyedRecord, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml dataset: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var entries []keyedRecord

	switch root.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			key := root.Content[i].Value
			entry, err := decodeYAMLEntry(root.Content[i+1], key)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	case yaml.SequenceNode:
		for _, node := range root.Content {
			entry, err := decodeYAMLEntry(node, "")
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	default:
		return nil, fmt.Errorf("%w: yaml dataset must be a mapping or a sequence", errs.ErrUnsupportedFormat)
	}

	return entries, nil
}

func decodeYAMLEntry(node *yaml.Node, key string) (keyedRecord, error) {
	var raw yamlRecord
	if err := node.Decode(&raw); err != nil {
		return keyedRecord{}, fmt.Errorf("decode user %q: %w", key, err)
	}
	if raw.UserID.Kind == 0 {
		return keyedRecord{}, fmt.Errorf("%w: user %q has no userID", errs.ErrInvalidInput, key)
	}

	var scalar any
	if err := raw.UserID.Decode(&scalar); err != nil {
		return keyedRecord{}, fmt.Errorf("decode user %q: %w", key, err)
	}
	id, err := user.ParseID(scalar)
	if err != nil {
		return keyedRecord{}, fmt.Errorf("decode user %q: %w", key, err)
	}

	name := key
	if raw.UserName != nil {
		name = *raw.UserName
	}
	rec, err := user.NewRecord(id, name)
	if err != nil {
		return keyedRecord{}, err
	}
	return keyed(key, rec)
}

// keyed pairs rec with its key. A record stored under a key must carry the same
// username; array entries use their own username as key.
func keyed(key string, rec user.Record) (keyedRecord, error) {
	if key == "" {
		return keyedRecord{key: rec.Name(), record: rec}, nil
	}
	if rec.Name() != key {
		return keyedRecord{}, fmt.Errorf("%w: key %q holds user %q", errs.ErrInvalidInput, key, rec.Name())
	}
	return keyedRecord{key: key, record: rec}, nil
}
