package generation

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/logger"
)

const (
	typesDir      = "types"
	algorithmPath = "general/x-algorithm.md"
)

// KnowledgeType is one entry of the types/ directory.
type KnowledgeType struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type typeDoc struct {
	meta    PostType
	hasMeta bool
}

// Knowledge is the markdown knowledge base drafts are written from:
// types/<id>.md per post type (optional YAML front matter overriding the
// built-in catalog entry) and general/x-algorithm.md for platform guidance.
// File bodies are read on every call; the type index is cached and rebuilt
// by Reload or the watcher.
type Knowledge struct {
	root string
	log  *zap.SugaredLogger

	mu    sync.RWMutex
	types map[string]typeDoc

	watchMu  sync.Mutex
	onReload []func()
}

// OpenKnowledge indexes dir. A missing directory yields an empty index.
func OpenKnowledge(dir string, log *zap.SugaredLogger) (*Knowledge, error) {
	if log == nil {
		log = logger.ComponentLogger("knowledge")
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve knowledge dir %s", dir)
	}
	k := &Knowledge{root: filepath.Clean(root), log: log, types: map[string]typeDoc{}}
	if err := k.Reload(); err != nil {
		return nil, err
	}
	return k, nil
}

// Root is the absolute knowledge directory.
func (k *Knowledge) Root() string {
	return k.root
}

// ResolvePath maps a relative path inside the knowledge directory to an
// absolute one, rejecting anything that escapes it.
func (k *Knowledge) ResolvePath(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", errors.Mark(errors.Wrapf(ErrInvalidKnowledgePath, "%s", rel), errors.ErrInvalidRequest)
	}
	resolved := filepath.Join(k.root, rel)
	if !strings.HasPrefix(resolved, k.root+string(filepath.Separator)) {
		return "", errors.Mark(errors.Wrapf(ErrInvalidKnowledgePath, "%s", rel), errors.ErrInvalidRequest)
	}
	return resolved, nil
}

// Read returns the raw markdown at rel.
func (k *Knowledge) Read(rel string) (string, error) {
	path, err := k.ResolvePath(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", errors.NewNotFoundError("knowledge file not found: %s", rel)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read knowledge file %s", rel)
	}
	return string(data), nil
}

// TypeMarkdown returns the body of types/<typeID>.md without front matter.
func (k *Knowledge) TypeMarkdown(typeID string) (string, error) {
	raw, err := k.Read(typeFile(typeID))
	if err != nil {
		return "", err
	}
	_, body, err := splitFrontMatter(raw)
	if err != nil {
		return "", errors.Wrapf(err, "knowledge type %s", typeID)
	}
	return body, nil
}

// AlgorithmMarkdown returns the platform guidance document.
func (k *Knowledge) AlgorithmMarkdown() (string, error) {
	return k.Read(algorithmPath)
}

// ListTypes returns indexed type documents sorted by id.
func (k *Knowledge) ListTypes() []KnowledgeType {
	k.mu.RLock()
	defer k.mu.RUnlock()

	ids := make([]string, 0, len(k.types))
	for id := range k.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]KnowledgeType, 0, len(ids))
	for _, id := range ids {
		out = append(out, KnowledgeType{ID: id, Title: toTitle(id)})
	}
	return out
}

// PostType looks up a post type. Front matter fields override the built-in
// entry; a type document with a name but no built-in entry is a post type
// of its own.
func (k *Knowledge) PostType(id string) (PostType, bool) {
	k.mu.RLock()
	doc, indexed := k.types[id]
	k.mu.RUnlock()

	for _, pt := range builtinPostTypes {
		if pt.ID == id {
			if indexed && doc.hasMeta {
				return doc.meta.merge(pt), true
			}
			return pt, true
		}
	}
	if indexed && doc.hasMeta && doc.meta.Name != "" {
		return doc.meta, true
	}
	return PostType{}, false
}

// PostTypes lists the built-in catalog in its fixed order followed by
// knowledge-only types sorted by id.
func (k *Knowledge) PostTypes() []PostType {
	out := make([]PostType, 0, len(builtinPostTypes))
	builtin := make(map[string]bool, len(builtinPostTypes))
	for _, pt := range builtinPostTypes {
		builtin[pt.ID] = true
		merged, _ := k.PostType(pt.ID)
		out = append(out, merged)
	}
	for _, t := range k.ListTypes() {
		if builtin[t.ID] {
			continue
		}
		if pt, ok := k.PostType(t.ID); ok {
			out = append(out, pt)
		}
	}
	return out
}

// Reload rebuilds the type index from disk. A malformed front matter block
// is logged and the file is indexed without overrides.
func (k *Knowledge) Reload() error {
	dir := filepath.Join(k.root, typesDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		k.log.Warnw("Knowledge types directory missing", "dir", dir)
		entries = nil
	} else if err != nil {
		return errors.Wrapf(err, "failed to list %s", dir)
	}

	types := make(map[string]typeDoc, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".md")
		doc := typeDoc{}

		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			k.log.Warnw("Failed to read knowledge type", "type_id", id, "error", err)
			types[id] = doc
			continue
		}
		meta, _, err := splitFrontMatter(string(raw))
		if err != nil {
			k.log.Warnw("Ignoring malformed front matter", "type_id", id, "error", err)
		} else if meta != nil {
			doc.meta, doc.hasMeta = *meta, true
			doc.meta.ID = id
		}
		types[id] = doc
	}

	k.mu.Lock()
	k.types = types
	k.mu.Unlock()

	k.log.Debugw("Knowledge index loaded", "root", k.root, "types", len(types))
	return nil
}

// splitFrontMatter separates a leading YAML block delimited by "---" lines
// from the markdown body. Documents without one return nil metadata.
func splitFrontMatter(content string) (*PostType, string, error) {
	trimmed := strings.TrimLeft(content, " \t\r\n")
	if !strings.HasPrefix(trimmed, "---") {
		return nil, content, nil
	}
	parts := strings.SplitN(trimmed, "---", 3)
	if len(parts) < 3 {
		return nil, content, nil
	}

	body := strings.TrimSpace(parts[2])
	block := strings.TrimSpace(parts[1])
	if block == "" {
		return nil, body, nil
	}
	var meta PostType
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, body, errors.Wrap(err, "failed to parse front matter YAML")
	}
	return &meta, body, nil
}

func typeFile(typeID string) string {
	return typesDir + "/" + typeID + ".md"
}

func toTitle(id string) string {
	segments := strings.Split(id, "-")
	for i, s := range segments {
		if s != "" {
			segments[i] = strings.ToUpper(s[:1]) + s[1:]
		}
	}
	return strings.Join(segments, " ")
}
