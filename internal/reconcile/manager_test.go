package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/nikbrunner/bmsync/internal/bookmarks"
	"github.com/nikbrunner/bmsync/internal/model"
	"github.com/nikbrunner/bmsync/internal/reconcile"
	"github.com/nikbrunner/bmsync/internal/storage"
	"github.com/nikbrunner/bmsync/internal/testutil"
	"github.com/nikbrunner/bmsync/internal/tree"
)

// countingStore counts writes of the stored tree.
type countingStore struct {
	*storage.MemoryStore
	treeWrites atomic.Int32
}

func (s *countingStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	if namespace == storage.NamespaceTree {
		s.treeWrites.Add(1)
	}
	return s.MemoryStore.Set(ctx, namespace, key, value)
}

type fixture struct {
	service  *bookmarks.Memory
	store    *countingStore
	favicons *testutil.Favicons
	native   *testutil.Native
	manager  *reconcile.Manager
	events   *recorder
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []reconcile.Event
}

func (r *recorder) record(e reconcile.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []reconcile.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reconcile.Event(nil), r.events...)
}

func newFixture(t *testing.T, root *model.Node) *fixture {
	t.Helper()
	f := &fixture{
		service:  bookmarks.NewMemoryFrom(root),
		store:    &countingStore{MemoryStore: storage.NewMemoryStore()},
		favicons: &testutil.Favicons{},
		native:   &testutil.Native{Accept: true},
		events:   &recorder{},
	}
	f.manager = reconcile.New(reconcile.Config{
		Service:      f.service,
		Store:        f.store,
		Favicons:     f.favicons,
		Native:       f.native,
		PersistDelay: time.Hour,
	})
	f.manager.Subscribe(f.events.record)
	t.Cleanup(func() {
		f.manager.Close(context.Background())
		f.service.Close()
	})
	return f
}

func (f *fixture) start(t *testing.T) reconcile.Report {
	t.Helper()
	report, err := f.manager.Start(context.Background())
	assert.NilError(t, err)
	return report
}

// stored decodes the tree last written to the store.
func (f *fixture) stored(t *testing.T) *tree.Node {
	t.Helper()
	data, ok, err := f.store.Get(context.Background(), storage.NamespaceTree, storage.KeyBookmarks)
	assert.NilError(t, err)
	assert.Assert(t, ok, "no stored tree")
	root, err := tree.Decode(data)
	assert.NilError(t, err)
	return root
}

func TestStart_Bootstrap(t *testing.T) {
	f := newFixture(t, testutil.Sample())

	report := f.start(t)

	assert.Equal(t, report.Added, 8)
	assert.Equal(t, f.favicons.Clears(), 1)
	assert.Assert(t, f.favicons.Scheduled("https://go.dev"))
	assert.Assert(t, f.favicons.Scheduled("https://news.ycombinator.com"))
	assert.Equal(t, f.native.Pings(), 1)

	assert.NilError(t, f.manager.Flush(context.Background()))
	assert.Equal(t, f.stored(t).Len(), 8)
	assert.Equal(t, f.stored(t).Get("dev").Icon, tree.DefaultFolderIcon)
}

func TestStart_ReconcilesStoredTree(t *testing.T) {
	ctx := context.Background()
	authoritative := testutil.Sample()
	model.Find(authoritative, "dev").Title = "Dev"

	f := newFixture(t, authoritative)

	stored := tree.New(testutil.Sample(), nil)
	stored.Update(tree.StylePatch("code", "#22C55E"), "dev")
	stored.Add(&tree.Node{ID: "gone", Kind: model.KindFolder, ParentID: model.StringPtr(model.MenuID), Children: []*tree.Node{}})
	data, err := tree.Encode(stored)
	assert.NilError(t, err)
	assert.NilError(t, f.store.Set(ctx, storage.NamespaceTree, storage.KeyBookmarks, data))

	report := f.start(t)

	assert.DeepEqual(t, report, reconcile.Report{Updated: 1, Removed: 1})
	assert.Equal(t, f.favicons.Clears(), 0)

	dev := f.manager.Get("dev")
	assert.Equal(t, dev.Title, "Dev")
	assert.Equal(t, dev.Icon, "code")
	assert.Equal(t, dev.Color, "#22C55E")
	assert.Assert(t, f.manager.Get("gone") == nil)
	assert.Assert(t, f.favicons.Scheduled("https://go.dev"), "restored bookmarks refresh their favicons")
}

func TestStart_KeepsCustomBookmarkIcon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.Sample())

	stored := tree.New(testutil.Sample(), nil)
	stored.Update(tree.Patch{Icon: model.StringPtr("star")}, "gh")
	data, err := tree.Encode(stored)
	assert.NilError(t, err)
	assert.NilError(t, f.store.Set(ctx, storage.NamespaceTree, storage.KeyBookmarks, data))

	report := f.start(t)

	assert.Assert(t, !report.Changed())
	assert.Equal(t, f.manager.Get("gh").Icon, "star")
	assert.Assert(t, !f.favicons.Scheduled("https://github.com"))
	assert.Assert(t, f.favicons.Scheduled("https://go.dev"))
}

func TestStart_UnreadableStoredTree(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	assert.NilError(t, f.store.Set(context.Background(), storage.NamespaceTree, storage.KeyBookmarks, []byte("{")))

	report := f.start(t)

	assert.Equal(t, report.Added, 8)
	assert.Equal(t, f.favicons.Clears(), 1)
}

func TestNotStarted(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	ctx := context.Background()

	_, err := f.manager.Reconcile(ctx)
	assert.Assert(t, errors.Is(err, reconcile.ErrNotStarted))
	assert.Assert(t, errors.Is(f.manager.Run(ctx), reconcile.ErrNotStarted))
	_, err = f.manager.RequestUpdate(ctx, "dev", tree.StylePatch("x", "#000000"))
	assert.Assert(t, errors.Is(err, reconcile.ErrNotStarted))
	assert.Assert(t, f.manager.Tree() == nil)
	assert.Assert(t, f.manager.Get("dev") == nil)
}

func TestApply_Created(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	f.manager.Apply(model.Created{ID: "rust", Node: &model.Node{
		ID:       "rust",
		Title:    "Rust",
		Kind:     model.KindBookmark,
		URL:      "https://www.rust-lang.org/learn",
		ParentID: model.StringPtr("dev"),
		Index:    0,
	}})

	assert.DeepEqual(t, ids(f.manager.GetChildren("dev")), []string{"rust", "go", "gh"})
	assert.Equal(t, f.manager.Get("go").Index, 1)
	assert.Equal(t, f.manager.Get("rust").Icon, "https://www.rust-lang.org")
	assert.Assert(t, f.favicons.Scheduled("https://www.rust-lang.org"))

	events := f.events.all()
	assert.Equal(t, len(events), 1)
	created := events[0].(reconcile.Created)
	assert.Equal(t, created.ID, "rust")
	assert.Equal(t, created.Node.Icon, "https://www.rust-lang.org")
}

func TestApply_CreatedTwiceIsNoOp(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	note := model.Created{ID: "new", Node: &model.Node{
		ID: "new", Title: "New", Kind: model.KindFolder, ParentID: model.StringPtr(model.ToolbarID), Index: 1,
	}}
	f.manager.Apply(note)
	f.manager.RequestUpdate(context.Background(), "new", tree.StylePatch("star", "#EAB308"))
	f.manager.Apply(note)

	assert.Equal(t, len(f.manager.GetChildren(model.ToolbarID)), 2)
	assert.Equal(t, f.manager.Get("new").Icon, "star", "duplicate must not reset the style")
	assert.Equal(t, len(f.events.all()), 2)
}

func TestApply_CreatedUnknownParent(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	f.manager.Apply(model.Created{ID: "orphan", Node: &model.Node{
		ID: "orphan", Kind: model.KindBookmark, ParentID: model.StringPtr("missing"),
	}})

	assert.Assert(t, f.manager.Get("orphan") == nil)
	assert.Equal(t, len(f.events.all()), 0)
}

func TestApply_Changed(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)
	f.manager.RequestUpdate(context.Background(), "dev", tree.StylePatch("code", "#22C55E"))

	f.manager.Apply(model.Changed{ID: "dev", Info: model.ChangeInfo{Title: model.StringPtr("Dev")}})
	f.manager.Apply(model.Changed{ID: "gh", Info: model.ChangeInfo{URL: model.StringPtr("https://gitlab.com/x")}})
	f.manager.Apply(model.Changed{ID: "missing", Info: model.ChangeInfo{Title: model.StringPtr("x")}})

	dev := f.manager.Get("dev")
	assert.Equal(t, dev.Title, "Dev")
	assert.Equal(t, dev.Icon, "code")
	assert.Equal(t, f.manager.Get("gh").Icon, "https://gitlab.com")
	assert.Assert(t, f.favicons.Scheduled("https://gitlab.com"))

	events := f.events.all()
	assert.Equal(t, len(events), 3)
	assert.Equal(t, events[1].(reconcile.Changed).Node.Title, "Dev")
}

func TestApply_ChangedKeepsCustomIcon(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)
	_, err := f.manager.RequestUpdate(context.Background(), "gh", tree.Patch{Icon: model.StringPtr("star")})
	assert.NilError(t, err)

	f.manager.Apply(model.Changed{ID: "gh", Info: model.ChangeInfo{URL: model.StringPtr("https://github.com/golang/tools")}})
	assert.Equal(t, f.manager.Get("gh").Icon, "star")

	f.manager.Apply(model.Changed{ID: "gh", Info: model.ChangeInfo{URL: model.StringPtr("https://gitlab.com/x")}})
	assert.Equal(t, f.manager.Get("gh").Icon, "star")
	assert.Assert(t, !f.favicons.Scheduled("https://gitlab.com"))

	f.manager.Apply(model.Changed{ID: "go", Info: model.ChangeInfo{URL: model.StringPtr("https://go.dev/ref/spec")}})
	assert.Equal(t, f.manager.Get("go").Icon, "https://go.dev")
}

func TestApply_Removed(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	f.manager.Apply(model.Removed{ID: "dev", Info: model.RemoveInfo{ParentID: model.MenuID, Index: 0}})
	f.manager.Apply(model.Removed{ID: "dev", Info: model.RemoveInfo{ParentID: model.MenuID, Index: 0}})

	assert.Assert(t, f.manager.Get("dev") == nil)
	assert.Assert(t, f.manager.Get("go") == nil)
	assert.Equal(t, f.manager.Get("sep").Index, 0)

	events := f.events.all()
	assert.Equal(t, len(events), 1)
	removed := events[0].(reconcile.Removed)
	assert.Equal(t, len(removed.Node.Children), 2)
}

func TestApply_Moved(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	info := model.MoveInfo{ParentID: model.ToolbarID, Index: 0, OldParentID: "dev", OldIndex: 1}
	f.manager.Apply(model.Moved{ID: "gh", Info: info})

	assert.DeepEqual(t, ids(f.manager.GetChildren(model.ToolbarID)), []string{"gh", "news"})
	assert.DeepEqual(t, ids(f.manager.GetChildren("dev")), []string{"go"})
	assert.Equal(t, f.manager.GetParent("gh").ID, model.ToolbarID)
	assert.Equal(t, f.manager.Get("news").Index, 1)

	moved := f.events.all()[0].(reconcile.Moved)
	assert.Equal(t, moved.Info, info)
	assert.Equal(t, moved.Node.Parent(), model.ToolbarID)

	// into its own subtree
	f.manager.Apply(model.Moved{ID: model.MenuID, Info: model.MoveInfo{ParentID: "dev"}})
	assert.Equal(t, f.manager.GetParent(model.MenuID).ID, model.RootID)
	assert.Equal(t, len(f.events.all()), 1)
}

func TestRun_AppliesServiceNotifications(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.manager.Run(ctx) }()

	got := make(chan reconcile.Event, 8)
	f.manager.Subscribe(func(e reconcile.Event) { got <- e })

	created, err := f.manager.CreateBookmark(ctx, model.CreateDetails{
		ParentID: model.ToolbarID, Title: "Go Blog", URL: "https://go.dev/blog",
	})
	assert.NilError(t, err)
	_, err = f.service.Update(ctx, "news", model.ChangeInfo{Title: model.StringPtr("HN")})
	assert.NilError(t, err)

	for _, want := range []string{created.ID, "news"} {
		select {
		case e := <-got:
			assert.Equal(t, e.NodeID(), want)
		case <-time.After(2 * time.Second):
			t.Fatalf("no event for %s", want)
		}
	}
	assert.Equal(t, f.manager.Get(created.ID).Parent(), model.ToolbarID)
	assert.Equal(t, f.manager.Get("news").Title, "HN")

	cancel()
	assert.Assert(t, errors.Is(<-done, context.Canceled))
}

func TestRun_StopsWhenServiceCloses(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	f.service.Close()
	assert.NilError(t, f.manager.Run(context.Background()))
}

func TestRequestUpdate_FolderStyle(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	result, err := f.manager.RequestUpdate(context.Background(), "dev", tree.StylePatch("code", "#22C55E"))
	assert.NilError(t, err)
	assert.Assert(t, result.Styled)
	assert.Equal(t, result.Node.Icon, "code")

	styles := f.native.Styles()
	assert.Equal(t, len(styles), 1)
	assert.Equal(t, styles[0].ID, "dev")
	assert.Equal(t, styles[0].Title, "Development")
	assert.Equal(t, styles[0].Color, "#22C55E")

	assert.NilError(t, f.manager.Flush(context.Background()))
	assert.Equal(t, f.stored(t).Get("dev").Icon, "code")

	changed := f.events.all()[0].(reconcile.Changed)
	assert.Equal(t, changed.Node.Color, "#22C55E")
}

func TestRequestUpdate_TitleGoesToService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.Sample())
	f.start(t)

	title := "Golang"
	result, err := f.manager.RequestUpdate(ctx, "go", tree.Patch{Title: &title})
	assert.NilError(t, err)
	assert.Equal(t, result.Node.Title, "Golang")
	assert.Assert(t, !result.Styled, "bookmarks are not styled")
	assert.Equal(t, len(f.native.Styles()), 0)

	root, _ := f.service.GetTree(ctx)
	assert.Equal(t, model.Find(root, "go").Title, "Golang")
}

func TestRequestUpdate_URLKeepsCustomIcon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.Sample())
	f.start(t)
	_, err := f.manager.RequestUpdate(ctx, "gh", tree.Patch{Icon: model.StringPtr("star")})
	assert.NilError(t, err)

	result, err := f.manager.RequestUpdate(ctx, "gh", tree.Patch{URL: model.StringPtr("https://github.com/golang/tools")})
	assert.NilError(t, err)
	assert.Equal(t, result.Node.URL, "https://github.com/golang/tools")
	assert.Equal(t, result.Node.Icon, "star")

	result, err = f.manager.RequestUpdate(ctx, "go", tree.Patch{URL: model.StringPtr("https://pkg.go.dev/std")})
	assert.NilError(t, err)
	assert.Equal(t, result.Node.Icon, "https://pkg.go.dev")
	assert.Assert(t, f.favicons.Scheduled("https://pkg.go.dev"))
}

func TestRequestUpdate_Refused(t *testing.T) {
	ctx := context.Background()
	sample := testutil.Sample()
	model.Find(sample, "dev").Unmodifiable = "managed"
	f := newFixture(t, sample)
	f.start(t)

	title := "Dev"
	_, err := f.manager.RequestUpdate(ctx, "dev", tree.Patch{Title: &title})
	assert.Assert(t, errors.Is(err, bookmarks.ErrUnmodifiable))
	assert.Equal(t, f.manager.Get("dev").Title, "Development")

	_, err = f.manager.RequestUpdate(ctx, "missing", tree.StylePatch("x", "#000000"))
	assert.Assert(t, errors.Is(err, bookmarks.ErrNotFound))

	_, err = f.manager.RequestUpdate(ctx, "dev", tree.Patch{})
	assert.ErrorContains(t, err, "empty patch")
	assert.Equal(t, len(f.events.all()), 0)
}

func TestPersistCoalesces(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	for i := 0; i < 10; i++ {
		title := string(rune('a' + i))
		f.manager.Apply(model.Changed{ID: "go", Info: model.ChangeInfo{Title: &title}})
	}
	assert.Equal(t, f.store.treeWrites.Load(), int32(0))

	assert.NilError(t, f.manager.Flush(context.Background()))
	assert.NilError(t, f.manager.Flush(context.Background()))
	assert.Equal(t, f.store.treeWrites.Load(), int32(1))
	assert.Equal(t, f.stored(t).Get("go").Title, "j")
}

func TestClose(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	assert.NilError(t, f.manager.Close(context.Background()))
	assert.Equal(t, f.store.treeWrites.Load(), int32(1))
	assert.Assert(t, f.favicons.Closed())
}

func TestReadsReturnCopies(t *testing.T) {
	f := newFixture(t, testutil.Sample())
	f.start(t)

	f.manager.Get("dev").Title = "mutated"
	f.manager.Tree().Get("go").Title = "mutated"
	f.manager.GetChildren("dev")[0].Title = "mutated"

	assert.Equal(t, f.manager.Get("dev").Title, "Development")
	assert.Equal(t, f.manager.Get("go").Title, "Go")

	assert.DeepEqual(t, ids(f.manager.Search("git")), []string{"gh"})
	folders := f.manager.Folders()
	assert.Equal(t, folders.Len(), 4)
}

func TestReconcileOnDemand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.Sample())
	f.start(t)

	// changes made while no one listened
	assert.NilError(t, f.service.Remove(ctx, "sep"))
	_, err := f.service.Move(ctx, "news", "dev", 0)
	assert.NilError(t, err)

	report, err := f.manager.Reconcile(ctx)
	assert.NilError(t, err)
	assert.Equal(t, report.Removed, 1)
	assert.DeepEqual(t, ids(f.manager.GetChildren("dev")), []string{"news", "go", "gh"})
}

func ids(nodes []*tree.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}
