package generation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/postpulse/errors"
)

const algorithmDoc = "# Ranking\n\nReplies matter.\n"

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// writeKnowledge lays out a small knowledge directory and returns its path.
func writeKnowledge(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "general", "x-algorithm.md"), algorithmDoc)
	writeFile(t, filepath.Join(dir, "types", "awareness.md"), "# awareness\n\nSay one thing.\n")
	writeFile(t, filepath.Join(dir, "types", "education.md"),
		"---\ntips: \"one point per post\"\n---\n# education\n\nTeach one thing.\n")
	writeFile(t, filepath.Join(dir, "types", "case-study.md"),
		"---\nname: Case study\npurpose: Walk through one result.\nstructure_hint: before, after, lesson\ntips: keep numbers\n---\nBody.\n")
	writeFile(t, filepath.Join(dir, "types", "notes.txt"), "ignored")
	return dir
}

func openTestKnowledge(t *testing.T, dir string) *Knowledge {
	t.Helper()
	k, err := OpenKnowledge(dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return k
}

func TestKnowledge_ListTypes(t *testing.T) {
	k := openTestKnowledge(t, writeKnowledge(t))

	assert.Equal(t, []KnowledgeType{
		{ID: "awareness", Title: "Awareness"},
		{ID: "case-study", Title: "Case Study"},
		{ID: "education", Title: "Education"},
	}, k.ListTypes())
}

func TestKnowledge_MissingDirectoryIsEmpty(t *testing.T) {
	k := openTestKnowledge(t, filepath.Join(t.TempDir(), "absent"))
	assert.Empty(t, k.ListTypes())

	_, err := k.AlgorithmMarkdown()
	assert.True(t, errors.IsNotFoundError(err))
}

func TestKnowledge_ResolvePathRejectsTraversal(t *testing.T) {
	k := openTestKnowledge(t, writeKnowledge(t))

	for _, rel := range []string{"../secrets.md", "types/../../x.md", "/etc/passwd", "."} {
		t.Run(rel, func(t *testing.T) {
			_, err := k.ResolvePath(rel)
			assert.ErrorIs(t, err, ErrInvalidKnowledgePath)
			assert.True(t, errors.IsInvalidRequestError(err))
		})
	}

	_, err := k.TypeMarkdown("../../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKnowledgePath)

	p, err := k.ResolvePath("types/awareness.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(k.Root(), "types", "awareness.md"), p)
}

func TestKnowledge_TypeMarkdownStripsFrontMatter(t *testing.T) {
	k := openTestKnowledge(t, writeKnowledge(t))

	md, err := k.TypeMarkdown("education")
	require.NoError(t, err)
	assert.Equal(t, "# education\n\nTeach one thing.", md)

	plain, err := k.TypeMarkdown("awareness")
	require.NoError(t, err)
	assert.Equal(t, "# awareness\n\nSay one thing.\n", plain)

	_, err = k.TypeMarkdown("missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestKnowledge_PostTypeMergesFrontMatter(t *testing.T) {
	k := openTestKnowledge(t, writeKnowledge(t))

	edu, ok := k.PostType("education")
	require.True(t, ok)
	assert.Equal(t, "教育", edu.Name)
	assert.Equal(t, "one point per post", edu.Tips)
	assert.Equal(t, "結論→理由→具体例。", edu.StructureHint)

	cs, ok := k.PostType("case-study")
	require.True(t, ok)
	assert.Equal(t, PostType{
		ID:            "case-study",
		Name:          "Case study",
		Purpose:       "Walk through one result.",
		StructureHint: "before, after, lesson",
		Tips:          "keep numbers",
	}, cs)

	_, ok = k.PostType("nope")
	assert.False(t, ok)
}

func TestKnowledge_PostTypesOrder(t *testing.T) {
	types := openTestKnowledge(t, writeKnowledge(t)).PostTypes()

	require.Len(t, types, len(builtinPostTypes)+1)
	assert.Equal(t, "awareness", types[0].ID)
	assert.Equal(t, "algorithm", types[len(builtinPostTypes)-1].ID)
	assert.Equal(t, "case-study", types[len(types)-1].ID)
}

func TestKnowledge_MalformedFrontMatterIsIgnored(t *testing.T) {
	dir := writeKnowledge(t)
	writeFile(t, filepath.Join(dir, "types", "cta.md"), "---\nname: [unclosed\n---\nbody")

	k := openTestKnowledge(t, dir)
	cta, ok := k.PostType("cta")
	require.True(t, ok)
	assert.Equal(t, "行動喚起", cta.Name)
}

func TestKnowledge_WatchReloadsOnChange(t *testing.T) {
	dir := writeKnowledge(t)
	k := openTestKnowledge(t, dir)

	reloaded := make(chan struct{}, 4)
	k.OnReload(func() { reloaded <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, k.Watch(ctx))

	writeFile(t, filepath.Join(dir, "types", "launch-day.md"), "---\nname: Launch\n---\nGo.\n")

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("knowledge index was not reloaded")
	}
	pt, ok := k.PostType("launch-day")
	require.True(t, ok)
	assert.Equal(t, "Launch", pt.Name)
}

func TestSplitFrontMatter(t *testing.T) {
	meta, body, err := splitFrontMatter("no front matter")
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.Equal(t, "no front matter", body)

	meta, body, err = splitFrontMatter("---\n---\nbody only")
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.Equal(t, "body only", body)
}

func TestBuildPrompts(t *testing.T) {
	pt := builtinPostTypes[5]

	sys := BuildSystemPrompt(pt, "  guidance  ")
	assert.Equal(t, "You are a tweet-generation assistant for X (Twitter).\n\n"+
		"Follow the platform guidance below.\n\n"+
		"guidance\n\n"+
		"Post type: 教育\n\n"+
		"Purpose: 役立つ知識を簡潔に伝える。\n\n"+
		"Structure hint: 結論→理由→具体例。\n\n"+
		"Tips: 1ツイートに1ポイントだけ。", sys)

	assert.NotContains(t, BuildSystemPrompt(pt, ""), "\n\n\n\n")

	user := BuildUserPrompt("", nil, false, "md")
	assert.Equal(t, "Generate a single tweet draft.\n\n"+
		"Theme: (not specified)\n\n"+
		"Keywords: (none)\n\n"+
		"Include hashtags: no\n\n"+
		"Type knowledge:\n\n"+
		"md", user)

	user = BuildUserPrompt("朝活", []string{"習慣", "早起き"}, true, "")
	assert.Contains(t, user, "Theme: 朝活")
	assert.Contains(t, user, "Keywords: 習慣, 早起き")
	assert.Contains(t, user, "Include hashtags: yes")
	assert.True(t, len(user) > 0 && user[len(user)-1] == ':')
}
