package notes

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/kv"
	"github.com/starford/quill/internal/models"
)

// fakeClock hands out strictly increasing UTC instants one minute apart.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("note-%03d", n)
	}
}

// failingStore accepts reads but refuses every write.
type failingStore struct {
	*kv.Memory
	writes int
}

func (f *failingStore) Set(string, []byte) error {
	f.writes++
	return errors.New("disk full")
}

// countingStore counts writes to the notes key.
type countingStore struct {
	*kv.Memory
	writes int
}

func (c *countingStore) Set(key string, value []byte) error {
	if key == kv.KeyNotes {
		c.writes++
	}
	return c.Memory.Set(key, value)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepo(t *testing.T, store kv.Store) *Repository {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	r := New(store,
		WithClock(clock.Now),
		WithIDGenerator(seqIDs()),
		WithLogger(testLogger()),
	)
	r.Load()
	return r
}

func ids(ns []models.Note) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestLoad_EmptyStore(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	assert.Empty(t, r.Notes())
	assert.Equal(t, 0, r.Len())
}

func TestLoad_CorruptCollection(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(kv.KeyNotes, []byte(`{"not":"an array"`)))

	r := newTestRepo(t, store)
	assert.Empty(t, r.Notes(), "corrupt data must degrade to an empty collection")
}

func TestLoad_SortsAndDedupes(t *testing.T) {
	store := kv.NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	persisted := []models.Note{
		{ID: "old", Title: "t", Content: "c", CreatedAt: base},
		{ID: "new", Title: "t", Content: "c", CreatedAt: base.Add(time.Hour)},
		{ID: "pinned", Title: "t", Content: "c", CreatedAt: base.Add(-time.Hour), IsPinned: true},
		{ID: "old", Title: "dup", Content: "dup", CreatedAt: base.Add(2 * time.Hour)},
	}
	require.NoError(t, kv.Save(store, kv.KeyNotes, persisted))

	r := newTestRepo(t, store)
	assert.Equal(t, []string{"pinned", "new", "old"}, ids(r.Notes()))
	got, ok := r.Get("old")
	require.True(t, ok)
	assert.Equal(t, "t", got.Title, "first occurrence wins")
}

func TestAddOrUpdate_AddThenList(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	n := r.Draft("Groceries", "milk, eggs", []byte{1, 2, 3})

	assert.Equal(t, OutcomeAdded, r.AddOrUpdate(n))

	all := r.Notes()
	require.Len(t, all, 1)
	assert.Equal(t, n, all[0])
}

func TestAddOrUpdate_RejectsEmptyFields(t *testing.T) {
	store := &countingStore{Memory: kv.NewMemory()}
	r := newTestRepo(t, store)
	require.Equal(t, OutcomeAdded, r.AddOrUpdate(r.Draft("keep", "me", nil)))
	before := r.Notes()
	writes := store.writes

	cases := []models.Note{
		r.Draft("", "content", nil),
		r.Draft("title", "", nil),
		r.Draft("", "", nil),
	}
	existing := before[0]
	existing.Title = ""
	cases = append(cases, existing)

	for _, n := range cases {
		assert.Equal(t, OutcomeRejected, r.AddOrUpdate(n))
	}
	assert.Equal(t, before, r.Notes(), "rejected calls must not change the collection")
	assert.Equal(t, writes, store.writes, "rejected calls must not write")
}

func TestAddOrUpdate_ReplacesInPlace(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	a := r.Draft("A", "a1", nil)
	b := r.Draft("B", "b1", nil)
	r.AddOrUpdate(a)
	r.AddOrUpdate(b)

	edited := a
	edited.Content = "a2"
	assert.Equal(t, OutcomeUpdated, r.AddOrUpdate(edited))

	assert.Equal(t, 2, r.Len())
	got, ok := r.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, "a2", got.Content)
	assert.Equal(t, a.CreatedAt, got.CreatedAt, "createdAt never changes")
	assert.True(t, got.LastModified.After(a.LastModified), "lastModified is refreshed on update")
	assert.Equal(t, []string{b.ID, a.ID}, ids(r.Notes()), "update keeps creation order")
}

func TestAddOrUpdate_CopiesImage(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	img := []byte{1, 2, 3}
	n := r.Draft("pic", "caption", img)
	r.AddOrUpdate(n)

	img[0] = 42
	got, _ := r.Get(n.ID)
	assert.Equal(t, []byte{1, 2, 3}, got.ImageData)

	got.ImageData[1] = 42
	again, _ := r.Get(n.ID)
	assert.Equal(t, []byte{1, 2, 3}, again.ImageData, "returned notes must not alias the working set")
}

func TestPin_TogglesAndReorders(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	a := r.Draft("A", "a1", nil)
	b := r.Draft("B", "b1", nil)
	r.AddOrUpdate(a)
	r.AddOrUpdate(b)
	require.Equal(t, []string{b.ID, a.ID}, ids(r.Notes()))

	assert.True(t, r.Pin(a))
	assert.Equal(t, []string{a.ID, b.ID}, ids(r.Notes()))

	got, _ := r.Get(a.ID)
	assert.True(t, got.IsPinned)
	assert.Equal(t, a.LastModified, got.LastModified, "pin does not count as an edit")
}

func TestPin_IsInvolution(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	n := r.Draft("A", "a1", nil)
	r.AddOrUpdate(n)
	before, _ := r.Get(n.ID)

	r.Pin(n)
	r.Pin(n)

	after, _ := r.Get(n.ID)
	assert.Equal(t, before, after)
}

func TestPin_MissingNote(t *testing.T) {
	store := &countingStore{Memory: kv.NewMemory()}
	r := newTestRepo(t, store)
	r.AddOrUpdate(r.Draft("A", "a", nil))
	writes := store.writes

	assert.False(t, r.Pin(models.Note{ID: "ghost"}))
	assert.Equal(t, writes, store.writes)
}

func TestDelete(t *testing.T) {
	store := &countingStore{Memory: kv.NewMemory()}
	r := newTestRepo(t, store)
	a := r.Draft("A", "a", nil)
	b := r.Draft("B", "b", nil)
	r.AddOrUpdate(a)
	r.AddOrUpdate(b)

	assert.True(t, r.Delete(a))
	assert.Equal(t, []string{b.ID}, ids(r.Notes()))
	_, ok := r.Get(a.ID)
	assert.False(t, ok)

	writes := store.writes
	before := r.Notes()
	assert.False(t, r.Delete(models.Note{ID: "ghost"}))
	assert.Equal(t, before, r.Notes())
	assert.Equal(t, writes, store.writes, "deleting a missing note must not write")
}

func TestSearch_CaseInsensitiveSubstring(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	g := r.Draft("Groceries", "milk", nil)
	w := r.Draft("Work", "call the GROCER about invoices", nil)
	x := r.Draft("Ideas", "nothing here", nil)
	for _, n := range []models.Note{g, w, x} {
		r.AddOrUpdate(n)
	}

	assert.Equal(t, []string{w.ID, g.ID}, ids(r.Search("grocer")))
	assert.Equal(t, []string{w.ID, g.ID}, ids(r.Search("GROCER")))
	assert.Equal(t, []string{g.ID}, ids(r.Search("MiLk")))
	assert.Empty(t, r.Search("xyz"))
	assert.Equal(t, ids(r.Notes()), ids(r.Search("")), "empty query returns everything in order")
}

func TestSearch_UnicodeFolding(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	n := r.Draft("Straße", "ΣΊΣΥΦΟΣ", nil)
	r.AddOrUpdate(n)

	assert.Len(t, r.Search("STRASSE"), 1)
	assert.Len(t, r.Search("σίσυφος"), 1)
}

func TestSearch_DoesNotMutate(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	r.AddOrUpdate(r.Draft("A", "a", nil))
	r.AddOrUpdate(r.Draft("B", "b", nil))
	before := r.Notes()

	res := r.Search("a")
	require.Len(t, res, 1)
	res[0].Title = "changed"

	assert.Equal(t, before, r.Notes())
}

func TestScenario_PinReordersList(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	a := r.Draft("A", "a1", nil)
	r.AddOrUpdate(a)
	b := r.Draft("B", "b1", nil)
	r.AddOrUpdate(b)

	assert.Equal(t, []string{b.ID, a.ID}, ids(r.Search("")))
	r.Pin(a)
	assert.Equal(t, []string{a.ID, b.ID}, ids(r.Search("")))
}

func TestPersistence_RoundTrip(t *testing.T) {
	store := kv.NewMemory()
	r := newTestRepo(t, store)
	a := r.Draft("A", "a1", []byte{0, 1, 2, 255})
	b := r.Draft("B", "b1", nil)
	r.AddOrUpdate(a)
	r.AddOrUpdate(b)
	r.Pin(b)

	reloaded := newTestRepo(t, store)
	assert.Equal(t, r.Notes(), reloaded.Notes())
}

func TestPersistence_DeleteLastWritesEmptyArray(t *testing.T) {
	store := kv.NewMemory()
	r := newTestRepo(t, store)
	n := r.Draft("A", "a", nil)
	r.AddOrUpdate(n)
	r.Delete(n)

	raw, err := store.Get(kv.KeyNotes)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestPersistence_WriteFailureKeepsState(t *testing.T) {
	store := &failingStore{Memory: kv.NewMemory()}
	r := newTestRepo(t, store)

	n := r.Draft("A", "a", nil)
	assert.Equal(t, OutcomeAdded, r.AddOrUpdate(n))
	assert.Equal(t, 1, store.writes)
	assert.Equal(t, 1, r.Len(), "in-memory state survives a failed write")
}

func TestOrderInvariant_RandomMutations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	r := newTestRepo(t, kv.NewMemory())
	var known []models.Note

	for step := 0; step < 500; step++ {
		switch op := rng.Intn(5); {
		case op <= 1 || len(known) == 0:
			n := r.Draft(fmt.Sprintf("t%d", step), "c", nil)
			r.AddOrUpdate(n)
			known = append(known, n)
		case op == 2:
			n := known[rng.Intn(len(known))]
			n.Content = fmt.Sprintf("edit %d", step)
			r.AddOrUpdate(n)
		case op == 3:
			r.Pin(known[rng.Intn(len(known))])
		default:
			i := rng.Intn(len(known))
			r.Delete(known[i])
			known = append(known[:i], known[i+1:]...)
		}

		all := r.Notes()
		require.True(t, Ordered(all), "order violated at step %d", step)
		for i := 1; i < len(all); i++ {
			a, b := all[i-1], all[i]
			if a.IsPinned == b.IsPinned {
				require.False(t, a.CreatedAt.Before(b.CreatedAt), "step %d: %s before %s", step, a.ID, b.ID)
			} else {
				require.True(t, a.IsPinned, "step %d: unpinned before pinned", step)
			}
		}
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "added", OutcomeAdded.String())
	assert.Equal(t, "updated", OutcomeUpdated.String())
	assert.Equal(t, "rejected", OutcomeRejected.String())
}

func TestAddOrUpdate_KeepsStoredCreatedAt(t *testing.T) {
	r := newTestRepo(t, kv.NewMemory())
	a := r.Draft("A", "a1", nil)
	b := r.Draft("B", "b1", nil)
	r.AddOrUpdate(a)
	r.AddOrUpdate(b)

	backdated := b
	backdated.Content = "b2"
	backdated.CreatedAt = a.CreatedAt.Add(-24 * time.Hour)
	assert.Equal(t, OutcomeUpdated, r.AddOrUpdate(backdated))

	got, ok := r.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, b.CreatedAt, got.CreatedAt, "createdAt is set once at creation")
	assert.Equal(t, []string{b.ID, a.ID}, ids(r.Notes()), "a replaced createdAt must not move the note")
}

func TestReload_CorruptCollectionKeepsWorkingSet(t *testing.T) {
	store := &countingStore{Memory: kv.NewMemory()}
	r := newTestRepo(t, store)
	for _, title := range []string{"A", "B", "C"} {
		r.AddOrUpdate(r.Draft(title, "body", nil))
	}
	require.NoError(t, store.Memory.Set(kv.KeyNotes, []byte(`[{"id":"x","title":`)))

	assert.False(t, r.Reload())
	assert.Equal(t, 3, r.Len(), "a broken collection must not clear the working set")

	r.AddOrUpdate(r.Draft("D", "body", nil))
	stored, ok := kv.Load[[]models.Note](store, kv.KeyNotes, testLogger())
	require.True(t, ok)
	assert.Len(t, stored, 4, "next write keeps every note")
}

func TestReload_MissingCollectionEmptiesWorkingSet(t *testing.T) {
	store := &removableStore{Memory: kv.NewMemory()}
	r := newTestRepo(t, store)
	r.AddOrUpdate(r.Draft("A", "a1", nil))

	store.remove(kv.KeyNotes)
	assert.True(t, r.Reload())
	assert.Zero(t, r.Len())
}

func TestReload_PicksUpExternalCollection(t *testing.T) {
	store := kv.NewMemory()
	r := newTestRepo(t, store)
	r.AddOrUpdate(r.Draft("A", "a1", nil))

	older := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	external := []models.Note{
		models.NewNote("old", "Old", "o", nil, older),
		models.NewNote("new", "New", "n", nil, older.Add(time.Hour)),
	}
	require.NoError(t, kv.Save(store, kv.KeyNotes, external))

	assert.True(t, r.Reload())
	assert.Equal(t, []string{"new", "old"}, ids(r.Notes()))
}

// removableStore can drop a key, as deleting the file under kv.FS would.
type removableStore struct {
	*kv.Memory
	gone map[string]bool
}

func (s *removableStore) remove(key string) {
	if s.gone == nil {
		s.gone = make(map[string]bool)
	}
	s.gone[key] = true
}

func (s *removableStore) Get(key string) ([]byte, error) {
	if s.gone[key] {
		return nil, fmt.Errorf("kv: get %s: %w", key, apperr.ErrNotFound)
	}
	return s.Memory.Get(key)
}

func (s *removableStore) Set(key string, value []byte) error {
	delete(s.gone, key)
	return s.Memory.Set(key, value)
}
