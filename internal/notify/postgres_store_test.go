package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropwatch/dropwatch/internal/testutil"
)

func TestPostgresRecordAndList(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	d := &Delivery{
		ID:               "ntf_1",
		StudentID:        "stu_0a1b2c3d",
		StudentName:      "ravi kumar",
		AlertType:        AlertAttendance,
		Channel:          ChannelEmail,
		Recipients:       []string{"parent@example.com", "teacher@example.com"},
		Message:          "Attendance has dropped below 60%.",
		Priority:         "high",
		SentCount:        1,
		FailedRecipients: []string{"teacher@example.com"},
		Status:           "partial",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Record(ctx, d))

	got, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "stu_0a1b2c3d", got[0].StudentID)
	assert.Equal(t, AlertAttendance, got[0].AlertType)
	assert.Equal(t, []string{"parent@example.com", "teacher@example.com"}, got[0].Recipients)
	assert.Equal(t, []string{"teacher@example.com"}, got[0].FailedRecipients)
	assert.Equal(t, "partial", got[0].Status)
}

func TestPostgresListFilters(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	deliveries := []*Delivery{
		{ID: "ntf_1", StudentID: "stu_0a1b2c3d", AlertType: AlertAttendance, Channel: ChannelEmail, CreatedAt: base},
		{ID: "ntf_2", StudentID: "stu_0a1b2c3d", AlertType: AlertFees, Channel: ChannelSMS, CreatedAt: base.Add(time.Minute)},
		{ID: "ntf_3", StudentID: "stu_9e8f7a6b", AlertType: AlertAttendance, Channel: ChannelEmail, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, d := range deliveries {
		d.Recipients = []string{"parent@example.com"}
		d.Status = "sent"
		d.SentCount = 1
		require.NoError(t, store.Record(ctx, d))
	}

	byStudent, err := store.List(ctx, Filter{StudentID: "stu_0a1b2c3d"})
	require.NoError(t, err)
	require.Len(t, byStudent, 2)
	// Most recent first.
	assert.Equal(t, "ntf_2", byStudent[0].ID)
	assert.Equal(t, "ntf_1", byStudent[1].ID)

	byType, err := store.List(ctx, Filter{AlertType: AlertAttendance})
	require.NoError(t, err)
	require.Len(t, byType, 2)
	assert.Equal(t, "ntf_3", byType[0].ID)

	limited, err := store.List(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "ntf_3", limited[0].ID)
}

func TestPostgresRecordRejectsUnknownChannel(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	err := store.Record(ctx, &Delivery{
		ID:        "ntf_bad",
		StudentID: "stu_0a1b2c3d",
		AlertType: AlertGeneral,
		Channel:   Channel("fax"),
		CreatedAt: time.Now().UTC(),
	})
	assert.Error(t, err, "channel check constraint should reject unknown channels")
}
