package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/pacts/testutil"
)

func TestPactPage(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "author")
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	pact := testutil.CreatePact(t, db, author)
	base := time.Now().Add(-time.Hour)
	older := testutil.CreateCheckIn(t, db, pact, base)
	newer := testutil.CreateCheckIn(t, db, pact, base.Add(10*time.Minute))

	kudos := NewKudoService(NewKudoStore(db), nil, nil)
	ctx := context.Background()
	for _, u := range []*Identity{as(alice), as(bob)} {
		_, err := kudos.Toggle(ctx, u, older.ID, pact.ID)
		require.NoError(t, err)
	}

	pages := NewPages(db, nil, nil)
	page, err := pages.PactPage(ctx, pact.ID, as(alice))
	require.NoError(t, err)

	assert.Equal(t, pact.Title, page.Pact.Title)
	assert.Equal(t, author.ID, page.Pact.Author.ID)
	assert.Equal(t, "active", page.Pact.State)
	assert.Equal(t, 30, page.Pact.DaysLeft)
	require.Len(t, page.CheckIns, 2)
	assert.Equal(t, newer.ID, page.CheckIns[0].ID)
	assert.Equal(t, older.ID, page.CheckIns[1].ID)
	assert.Equal(t, int64(0), page.CheckIns[0].KudoCount)
	assert.Equal(t, int64(2), page.CheckIns[1].KudoCount)
	assert.False(t, page.CheckIns[0].HasKudoed)
	assert.True(t, page.CheckIns[1].HasKudoed)
	assert.Zero(t, page.CheckIns[1].CommentsCount)
	assert.Nil(t, page.CheckIns[0].Pact)

	anon, err := pages.PactPage(ctx, pact.ID, nil)
	require.NoError(t, err)
	assert.False(t, anon.CheckIns[1].HasKudoed)
	assert.Equal(t, int64(2), anon.CheckIns[1].KudoCount)

	_, err = pages.PactPage(ctx, pact.ID+100, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFeed(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "author")
	alice := testutil.CreateUser(t, db, "alice")
	pact := testutil.CreatePact(t, db, author)
	base := time.Now().Add(-time.Hour)
	var last uint
	for i := 0; i < 3; i++ {
		last = testutil.CreateCheckIn(t, db, pact, base.Add(time.Duration(i)*time.Minute)).ID
	}
	_, err := NewKudoService(NewKudoStore(db), nil, nil).Toggle(context.Background(), as(alice), last, 0)
	require.NoError(t, err)

	pages := NewPages(db, nil, nil)
	items, err := pages.Feed(context.Background(), 2, as(alice))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, last, items[0].ID)
	require.NotNil(t, items[0].Pact)
	assert.Equal(t, pact.Title, items[0].Pact.Title)
	assert.Equal(t, int64(1), items[0].KudoCount)
	assert.True(t, items[0].HasKudoed)
	assert.False(t, items[1].HasKudoed)

	items, err = pages.Feed(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestProfile(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "author")
	first := testutil.CreatePact(t, db, author)
	require.NoError(t, db.Model(first).Update("created_at", time.Now().Add(-time.Hour)).Error)
	second := testutil.CreatePact(t, db, author)

	pages := NewPages(db, nil, nil)
	ctx := context.Background()

	byID, err := pages.Profile(ctx, strconv.FormatUint(uint64(author.ID), 10))
	require.NoError(t, err)
	require.Len(t, byID.Pacts, 2)
	assert.Equal(t, second.ID, byID.Pacts[0].ID)
	assert.Equal(t, first.ID, byID.Pacts[1].ID)
	assert.Equal(t, "active", byID.Pacts[0].State)

	byName, err := pages.Profile(ctx, *author.Username)
	require.NoError(t, err)
	assert.Equal(t, author.ID, byName.User.ID)

	_, err = pages.Profile(ctx, "nobody-here")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = pages.Profile(ctx, "99999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStats(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "author")
	alice := testutil.CreateUser(t, db, "alice")
	pact := testutil.CreatePact(t, db, author)
	ci := testutil.CreateCheckIn(t, db, pact, time.Now())
	_, err := NewKudoService(NewKudoStore(db), nil, nil).Toggle(context.Background(), as(alice), ci.ID, 0)
	require.NoError(t, err)

	st, err := NewPages(db, nil, nil).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Users: 2, Pacts: 1, CheckIns: 1, Kudos: 1}, *st)
}
