package render_test

import (
	"strings"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/nikbrunner/bmsync/internal/render"
	"github.com/nikbrunner/bmsync/internal/testutil"
	"github.com/nikbrunner/bmsync/internal/tree"
)

func TestTree(t *testing.T) {
	root := tree.New(testutil.Sample(), nil)
	root.Update(tree.StylePatch("star", "#FF0000"), "dev")

	out := render.Tree(root, render.Options{URLs: true, IDs: true})

	for _, want := range []string{
		"Bookmarks Menu",
		"Development",
		"[star]",
		"[folder-outline]",
		"Go",
		"https://go.dev/doc",
		"(news)",
	} {
		assert.Assert(t, strings.Contains(out, want), "missing %q in\n%s", want, out)
	}

	// children come after their folder
	assert.Assert(t, strings.Index(out, "Development") < strings.Index(out, "GitHub"))
	assert.Assert(t, strings.Index(out, "GitHub") < strings.Index(out, "Bookmarks Toolbar"))
}

func TestTree_Plain(t *testing.T) {
	root := tree.New(testutil.Sample(), nil)

	out := render.Tree(root, render.Options{})

	assert.Assert(t, !strings.Contains(out, "https://"))
	assert.Assert(t, !strings.Contains(out, "(dev)"))
}
