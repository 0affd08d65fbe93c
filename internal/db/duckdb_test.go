package db

import (
	"path/filepath"
	"testing"

	"github.com/jcdickinson/sidebarfetch/internal/sidebar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertPage(t *testing.T) {
	db := testDB(t)

	p1, err := db.UpsertPage("clap", "2.2.0", "clap::args", "hash1")
	require.NoError(t, err)
	require.NotZero(t, p1.ID)

	p2, err := db.UpsertPage("clap", "2.2.0", "clap::args", "hash2")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID, "same page must keep its id")
	assert.Equal(t, "hash2", p2.ContentHash)

	p3, err := db.UpsertPage("clap", "2.3.0", "clap::args", "hash1")
	require.NoError(t, err)
	assert.NotEqual(t, p1.ID, p3.ID)

	pages, err := db.ListPages()
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestGetPage_Missing(t *testing.T) {
	db := testDB(t)

	p, err := db.GetPage("clap", "2.2.0", "clap::args")
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = db.GetLatestPage("clap", "clap::args")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGetLatestPage(t *testing.T) {
	db := testDB(t)

	_, err := db.UpsertPage("clap", "2.2.0", "clap::args", "a")
	require.NoError(t, err)
	newer, err := db.UpsertPage("clap", "2.3.0", "clap::args", "b")
	require.NoError(t, err)

	got, err := db.GetLatestPage("clap", "clap::args")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)
}

func TestReplaceEntries(t *testing.T) {
	db := testDB(t)

	page, err := db.UpsertPage("clap", "2.2.0", "clap::args", "hash")
	require.NoError(t, err)

	require.NoError(t, db.ReplaceEntries(page.ID, sidebar.ClapArgs()))
	n, err := db.CountEntries(page.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	// Replacing again must not duplicate rows.
	require.NoError(t, db.ReplaceEntries(page.ID, sidebar.ClapArgs()))
	n, err = db.CountEntries(page.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	reloaded, err := db.LoadItems(page.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Equal(sidebar.ClapArgs()))

	smaller, err := sidebar.NewBuilder().Add(sidebar.KindFn, "run", "Runs.").Build()
	require.NoError(t, err)
	require.NoError(t, db.ReplaceEntries(page.ID, smaller))
	n, err = db.CountEntries(page.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadItems(t *testing.T) {
	db := testDB(t)

	page, err := db.UpsertPage("clap", "2.2.0", "clap::args", "hash")
	require.NoError(t, err)
	require.NoError(t, db.ReplaceEntries(page.ID, sidebar.ClapArgs()))

	items, err := db.LoadItems(page.ID)
	require.NoError(t, err)
	assert.True(t, items.Equal(sidebar.ClapArgs()))
	assert.Equal(t, []sidebar.Kind{sidebar.KindMod, sidebar.KindStruct}, items.Kinds())

	empty, err := db.LoadItems(page.ID + 100)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestFindEntries(t *testing.T) {
	db := testDB(t)

	clap, err := db.UpsertPage("clap", "2.2.0", "clap::args", "hash")
	require.NoError(t, err)
	require.NoError(t, db.ReplaceEntries(clap.ID, sidebar.ClapArgs()))

	other, err := db.UpsertPage("other", "1.0.0", "other", "hash2")
	require.NoError(t, err)
	items, err := sidebar.NewBuilder().
		Add(sidebar.KindFn, "arg_count", "Counts 100% of args.").
		Add(sidebar.KindStruct, "Thing", "Unrelated.").
		Build()
	require.NoError(t, err)
	require.NoError(t, db.ReplaceEntries(other.ID, items))

	t.Run("case_insensitive_name", func(t *testing.T) {
		hits, err := db.FindEntries("arg", nil, nil, 0)
		require.NoError(t, err)
		var names []string
		for _, h := range hits {
			names = append(names, h.Name)
		}
		assert.ElementsMatch(t, []string{"Arg", "ArgGroup", "ArgMatches", "any_arg", "arg_count"}, names)
	})

	t.Run("crate_filter", func(t *testing.T) {
		hits, err := db.FindEntries("arg", []string{"other"}, nil, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "arg_count", hits[0].Name)
		assert.Equal(t, sidebar.KindFn, hits[0].Kind)
		assert.Equal(t, "other", hits[0].Crate)
	})

	t.Run("kind_filter", func(t *testing.T) {
		hits, err := db.FindEntries("arg", nil, []sidebar.Kind{sidebar.KindMod}, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "any_arg", hits[0].Name)
		assert.Equal(t, "clap::args", hits[0].Path)
	})

	t.Run("like_wildcards_are_literal", func(t *testing.T) {
		hits, err := db.FindEntries("100%", nil, nil, 0)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "arg_count", hits[0].Name)

		hits, err = db.FindEntries("_", nil, nil, 0)
		require.NoError(t, err)
		for _, h := range hits {
			assert.Contains(t, h.Name+h.Description, "_")
		}
	})

	t.Run("name_matches_first", func(t *testing.T) {
		hits, err := db.FindEntries("arg", nil, nil, 0)
		require.NoError(t, err)
		var names []string
		for _, h := range hits {
			names = append(names, h.Name)
		}
		// case-folded exact, prefixes, then substrings
		assert.Equal(t, []string{"Arg", "ArgGroup", "ArgMatches", "arg_count", "any_arg"}, names)
	})

	t.Run("limit", func(t *testing.T) {
		hits, err := db.FindEntries("arg", nil, nil, 2)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})
}

func TestFindEntries_LimitKeepsExactMatch(t *testing.T) {
	db := testDB(t)

	page, err := db.UpsertPage("zeta", "1.0.0", "zeta", "hash")
	require.NoError(t, err)
	b := sidebar.NewBuilder()
	for _, name := range []string{"A0", "A1", "A2", "A3", "A4", "A5"} {
		b.Add(sidebar.KindFn, name, "Builds a Zeta value.")
	}
	b.Add(sidebar.KindStruct, "Zeta", "")
	items, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, db.ReplaceEntries(page.ID, items))

	hits, err := db.FindEntries("Zeta", nil, nil, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Zeta", hits[0].Name)
}

func TestDeletePage(t *testing.T) {
	db := testDB(t)

	page, err := db.UpsertPage("clap", "2.2.0", "clap::args", "hash")
	require.NoError(t, err)
	require.NoError(t, db.ReplaceEntries(page.ID, sidebar.ClapArgs()))

	require.NoError(t, db.DeletePage(page.ID))

	got, err := db.GetPage("clap", "2.2.0", "clap::args")
	require.NoError(t, err)
	assert.Nil(t, got)
	n, err := db.CountEntries(page.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTouchPage(t *testing.T) {
	db := testDB(t)

	page, err := db.UpsertPage("clap", "2.2.0", "clap::args", "hash")
	require.NoError(t, err)
	require.NoError(t, db.TouchPage(page.ID))
}
