package service

import (
	"context"
	"testing"

	"anoa.com/forumboard/internal/entity"
	commentRepo "anoa.com/forumboard/internal/modules/comment/repository"
	threadRepo "anoa.com/forumboard/internal/modules/thread/repository"
	"anoa.com/forumboard/internal/testutil"
	"anoa.com/forumboard/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	commenter := testutil.CreateUser(t, db, "commenter")
	stranger := testutil.CreateUser(t, db, "stranger")
	thread := testutil.CreateThread(t, db, owner, "mine")

	c := entity.Comment{AuthorID: commenter.ID, ThreadID: thread.ID, Content: "hi", ModerationStatus: entity.ModerationApproved}
	require.NoError(t, db.Omit("Author").Create(&c).Error)
	deleted := entity.Comment{AuthorID: commenter.ID, ThreadID: thread.ID, Content: "gone", ModerationStatus: entity.ModerationApproved, IsDeleted: true}
	require.NoError(t, db.Omit("Author").Create(&deleted).Error)

	svc := NewOwnershipService(threadRepo.NewThreadRepository(db), commentRepo.NewCommentRepository(db))
	admin := Actor{ID: uuid.New(), Role: entity.RoleAdmin}
	user := func(u entity.User) Actor { return Actor{ID: u.ID, Role: entity.RoleUser} }

	cases := []struct {
		name     string
		actor    Actor
		resource string
		id       uuid.UUID
		want     error
	}{
		{"thread author", user(owner), ResourceThread, thread.ID, nil},
		{"thread stranger", user(stranger), ResourceThread, thread.ID, apperror.ErrForbidden},
		{"thread commenter", user(commenter), ResourceThread, thread.ID, apperror.ErrForbidden},
		{"thread admin", admin, ResourceThread, thread.ID, nil},
		{"thread missing", admin, ResourceThread, uuid.New(), apperror.ErrNotFound},
		{"comment author", user(commenter), ResourceComment, c.ID, nil},
		{"comment thread owner", user(owner), ResourceComment, c.ID, nil},
		{"comment stranger", user(stranger), ResourceComment, c.ID, apperror.ErrForbidden},
		{"comment admin", admin, ResourceComment, c.ID, nil},
		{"comment missing", user(owner), ResourceComment, uuid.New(), apperror.ErrNotFound},
		{"comment deleted", admin, ResourceComment, deleted.ID, apperror.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(context.Background(), tc.actor, tc.resource, tc.id)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthorizeUnknownResource(t *testing.T) {
	svc := NewOwnershipService(nil, nil)
	assert.Error(t, svc.Authorize(context.Background(), Actor{}, "post", uuid.New()))
}
