package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/quangtran/dinehub-backend/pkg/db/models"
	"github.com/quangtran/dinehub-backend/pkg/enums"
	"github.com/quangtran/dinehub-backend/pkg/outbox"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{`
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  payload TEXT,
  recipient_user_id TEXT,
  audience_role TEXT,
  order_id TEXT,
  reservation_id TEXT,
  read_at DATETIME,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`}

	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	// shared-cache sqlite carries rows across tests in this package
	require.NoError(t, db.Exec("DELETE FROM notifications").Error)
	require.NoError(t, db.Exec("DELETE FROM outbox_events").Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingOutbox struct {
	events []outbox.DomainEvent
}

func (r *recordingOutbox) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		panic("outbox emit outside transaction")
	}
	r.events = append(r.events, event)
	return nil
}

func seedNotification(t *testing.T, db *gorm.DB, mutate func(*models.Notification)) *models.Notification {
	t.Helper()
	row := &models.Notification{
		ID:        uuid.New(),
		Type:      enums.NotificationSystem,
		Title:     "title",
		Message:   "message",
		CreatedAt: time.Now().UTC(),
	}
	if mutate != nil {
		mutate(row)
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestList_ScopesToRecipientAndRole(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	sink := &recordingOutbox{}
	svc, err := NewService(repo, gormTxRunner{db: db}, sink)
	require.NoError(t, err)

	me := uuid.New()
	other := uuid.New()
	staffRole := string(enums.UserRoleStaff)
	customerRole := string(enums.UserRoleCustomer)

	mine := seedNotification(t, db, func(n *models.Notification) { n.RecipientUserID = &me })
	seedNotification(t, db, func(n *models.Notification) { n.RecipientUserID = &other })
	seedNotification(t, db, func(n *models.Notification) { n.AudienceRole = &staffRole })
	forCustomers := seedNotification(t, db, func(n *models.Notification) { n.AudienceRole = &customerRole })
	global := seedNotification(t, db, nil)

	result, err := svc.List(context.Background(), ListParams{
		RecipientID: me,
		Role:        enums.UserRoleCustomer,
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	got := map[uuid.UUID]bool{}
	for _, item := range result.Items {
		got[item.ID] = true
	}
	require.True(t, got[mine.ID])
	require.True(t, got[forCustomers.ID])
	require.True(t, got[global.ID])
}

func TestList_CursorPagination(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, gormTxRunner{db: db}, &recordingOutbox{})
	require.NoError(t, err)

	me := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Minute
		seedNotification(t, db, func(n *models.Notification) {
			n.RecipientUserID = &me
			n.CreatedAt = base.Add(offset)
		})
	}

	first, err := svc.List(context.Background(), ListParams{RecipientID: me, Role: enums.UserRoleCustomer, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.Cursor)
	require.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))

	second, err := svc.List(context.Background(), ListParams{RecipientID: me, Role: enums.UserRoleCustomer, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.Cursor)
}

func TestList_UnreadOnly(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, gormTxRunner{db: db}, &recordingOutbox{})
	require.NoError(t, err)

	me := uuid.New()
	readAt := time.Now().UTC()
	seedNotification(t, db, func(n *models.Notification) {
		n.RecipientUserID = &me
		n.ReadAt = &readAt
	})
	unread := seedNotification(t, db, func(n *models.Notification) { n.RecipientUserID = &me })

	result, err := svc.List(context.Background(), ListParams{RecipientID: me, Role: enums.UserRoleCustomer, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Equal(t, unread.ID, result.Items[0].ID)
}

func TestMarkRead_FlipsOnceAndEmits(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	sink := &recordingOutbox{}
	svc, err := NewService(repo, gormTxRunner{db: db}, sink)
	require.NoError(t, err)

	me := uuid.New()
	first := seedNotification(t, db, func(n *models.Notification) { n.RecipientUserID = &me })
	second := seedNotification(t, db, func(n *models.Notification) { n.RecipientUserID = &me })
	ids := []uuid.UUID{first.ID, second.ID}

	flipped, err := svc.MarkRead(context.Background(), me, enums.UserRoleCustomer, ids)
	require.NoError(t, err)
	require.EqualValues(t, 2, flipped)
	require.Len(t, sink.events, 1)
	require.Equal(t, enums.EventNotificationMarkedRead, sink.events[0].EventType)

	var row models.Notification
	require.NoError(t, db.Where("id = ?", first.ID).First(&row).Error)
	require.NotNil(t, row.ReadAt)

	// replay is a no-op and emits nothing new
	flipped, err = svc.MarkRead(context.Background(), me, enums.UserRoleCustomer, ids)
	require.NoError(t, err)
	require.EqualValues(t, 0, flipped)
	require.Len(t, sink.events, 1)
}

func TestMarkRead_RejectsForeignNotification(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	sink := &recordingOutbox{}
	svc, err := NewService(repo, gormTxRunner{db: db}, sink)
	require.NoError(t, err)

	me := uuid.New()
	other := uuid.New()
	theirs := seedNotification(t, db, func(n *models.Notification) { n.RecipientUserID = &other })

	_, err = svc.MarkRead(context.Background(), me, enums.UserRoleCustomer, []uuid.UUID{theirs.ID})
	require.ErrorIs(t, err, ErrNotRecipient)
	require.Empty(t, sink.events)

	var row models.Notification
	require.NoError(t, db.Where("id = ?", theirs.ID).First(&row).Error)
	require.Nil(t, row.ReadAt)
}

func TestMarkRead_StaffBroadcastVisibility(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, gormTxRunner{db: db}, &recordingOutbox{})
	require.NoError(t, err)

	staffRole := string(enums.UserRoleStaff)
	broadcast := seedNotification(t, db, func(n *models.Notification) { n.AudienceRole = &staffRole })

	_, err = svc.MarkRead(context.Background(), uuid.New(), enums.UserRoleCustomer, []uuid.UUID{broadcast.ID})
	require.ErrorIs(t, err, ErrNotRecipient)

	flipped, err := svc.MarkRead(context.Background(), uuid.New(), enums.UserRoleAdmin, []uuid.UUID{broadcast.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, flipped)
}

func TestMarkAllRead(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo, gormTxRunner{db: db}, &recordingOutbox{})
	require.NoError(t, err)

	me := uuid.New()
	seedNotification(t, db, func(n *models.Notification) { n.RecipientUserID = &me })
	seedNotification(t, db, func(n *models.Notification) { n.RecipientUserID = &me })

	count, err := svc.MarkAllRead(context.Background(), me)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	count, err = svc.MarkAllRead(context.Background(), me)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}
