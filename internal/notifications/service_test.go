package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/campusmart/campusmart-backend/pkg/db/models"
	"github.com/campusmart/campusmart-backend/pkg/db/sqlitetest"
	"github.com/campusmart/campusmart-backend/pkg/enums"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
)

func newInbox(t *testing.T) (Service, *Repository) {
	t.Helper()
	repo := NewRepository(sqlitetest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo
}

// seed stores n notifications for user, one minute apart, oldest first.
func seed(t *testing.T, repo *Repository, user uuid.UUID, n int) []models.Notification {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	notes := make([]models.Notification, n)
	for i := range notes {
		notes[i] = models.Notification{
			ID:        uuid.New(),
			UserID:    user,
			EventID:   uuid.New(),
			Type:      enums.NotificationTypeOrderUpdate,
			Title:     "Order update",
			Message:   "Your order moved",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	require.NoError(t, repo.CreateMany(context.Background(), notes))
	return notes
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, pkgerrors.As(err).Code())
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, repo := newInbox(t)
	ctx := context.Background()
	user := uuid.New()
	notes := seed(t, repo, user, 3)
	seed(t, repo, uuid.New(), 2)

	first, err := svc.List(ctx, ListParams{UserID: user, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.Equal(t, notes[2].ID, first.Items[0].ID)
	require.Equal(t, notes[1].ID, first.Items[1].ID)
	require.NotEmpty(t, first.Cursor)
	require.EqualValues(t, 3, first.Unread)

	second, err := svc.List(ctx, ListParams{UserID: user, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Equal(t, notes[0].ID, second.Items[0].ID)
	require.Empty(t, second.Cursor)
}

func TestCreateManySkipsRedeliveredEvents(t *testing.T) {
	svc, repo := newInbox(t)
	ctx := context.Background()
	user := uuid.New()
	notes := seed(t, repo, user, 1)

	dup := notes[0]
	dup.ID = uuid.New()
	require.NoError(t, repo.CreateMany(ctx, []models.Notification{dup}))

	out, err := svc.List(ctx, ListParams{UserID: user})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
}

func TestMarkReadIsScopedAndIdempotent(t *testing.T) {
	svc, repo := newInbox(t)
	ctx := context.Background()
	user := uuid.New()
	notes := seed(t, repo, user, 2)

	require.NoError(t, svc.MarkRead(ctx, user, notes[0].ID))
	require.NoError(t, svc.MarkRead(ctx, user, notes[0].ID))
	requireCode(t, svc.MarkRead(ctx, uuid.New(), notes[1].ID), pkgerrors.CodeNotFound)
	requireCode(t, svc.MarkRead(ctx, user, uuid.New()), pkgerrors.CodeNotFound)

	out, err := svc.List(ctx, ListParams{UserID: user, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	require.Equal(t, notes[1].ID, out.Items[0].ID)
	require.EqualValues(t, 1, out.Unread)
}

func TestMarkAllReadCountsOnlyUnread(t *testing.T) {
	svc, repo := newInbox(t)
	ctx := context.Background()
	user := uuid.New()
	notes := seed(t, repo, user, 3)
	require.NoError(t, svc.MarkRead(ctx, user, notes[0].ID))

	n, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestDeleteReadBeforeKeepsUnread(t *testing.T) {
	svc, repo := newInbox(t)
	ctx := context.Background()
	user := uuid.New()
	notes := seed(t, repo, user, 2)
	require.NoError(t, svc.MarkRead(ctx, user, notes[0].ID))

	deleted, err := repo.DeleteReadBefore(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	out, err := svc.List(ctx, ListParams{UserID: user})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	require.Equal(t, notes[1].ID, out.Items[0].ID)
}

func TestInboxValidatesInput(t *testing.T) {
	svc, _ := newInbox(t)
	ctx := context.Background()

	_, err := svc.List(ctx, ListParams{})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = svc.List(ctx, ListParams{UserID: uuid.New(), Cursor: "bad"})
	requireCode(t, err, pkgerrors.CodeValidation)
	requireCode(t, svc.MarkRead(ctx, uuid.New(), uuid.Nil), pkgerrors.CodeValidation)
	_, err = svc.MarkAllRead(ctx, uuid.Nil)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = NewService(nil)
	require.Error(t, err)
}
