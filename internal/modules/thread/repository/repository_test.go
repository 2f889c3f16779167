package repository

import (
	"context"
	"testing"

	"anoa.com/forumboard/internal/entity"
	"anoa.com/forumboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchApprovedMatchesWildcardsLiterally(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	testutil.CreateThread(t, db, alice, "Learning Go")
	testutil.CreateThread(t, db, alice, "100% uptime")
	testutil.CreateThread(t, db, alice, "snake_case names")
	testutil.CreateThread(t, db, alice, "Wow!")
	repo := NewThreadRepository(db)

	cases := map[string][]string{
		"%":     {"100% uptime"},
		"_":     {"snake_case names"},
		"!":     {"Wow!"},
		"0% u":  {"100% uptime"},
		"e_c":   {"snake_case names"},
		"GO":    {"Learning Go"},
		"x%y":   nil,
		"nomat": nil,
	}
	for query, want := range cases {
		t.Run(query, func(t *testing.T) {
			threads, total, err := repo.SearchApproved(context.Background(), query, 0, 10)
			require.NoError(t, err)

			var titles []string
			for _, th := range threads {
				titles = append(titles, th.Title)
			}
			assert.Equal(t, want, titles)
			assert.Equal(t, int64(len(want)), total)
		})
	}
}

func TestSearchApprovedSkipsUnapproved(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	hidden := testutil.CreateThread(t, db, alice, "hidden thread")
	require.NoError(t, db.Model(&hidden).Update("moderation_status", entity.ModerationRejected).Error)

	threads, total, err := NewThreadRepository(db).SearchApproved(context.Background(), "hidden", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, threads)
	assert.Zero(t, total)
}
