package storage

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"mega-relay/domain"
)

// SetupTestDB initializes a temporary Badger instance for testing
func SetupTestDB(t *testing.T) (*badger.DB, func()) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)

	return db, func() {
		db.Close()
	}
}

func TestUserRepository_TouchAndTotals(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(db, slog.Default())

	req.NoError(repo.Touch(7, "alice", "Alice"))

	user, err := repo.Get(7)
	req.NoError(err)
	req.Equal("alice", user.Username)
	req.False(user.JoinedAt.IsZero())
	req.Zero(user.TotalDownloads)

	// Two completed transfers accumulate
	req.NoError(repo.RecordDownload(7, 500))
	req.NoError(repo.RecordDownload(7, 1500))

	user, err = repo.Get(7)
	req.NoError(err)
	req.Equal(int64(2), user.TotalDownloads)
	req.Equal(int64(2000), user.TotalBytes)
}

func TestUserRepository_TouchKeepsJoinedAt(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(db, slog.Default())

	req.NoError(repo.Touch(9, "bob", "Bob"))
	first, err := repo.Get(9)
	req.NoError(err)

	time.Sleep(5 * time.Millisecond)
	req.NoError(repo.Touch(9, "bob-renamed", "Bob"))

	second, err := repo.Get(9)
	req.NoError(err)
	req.Equal(first.JoinedAt, second.JoinedAt)
	req.Equal("bob-renamed", second.Username)
	req.True(second.LastActive.After(first.LastActive) || second.LastActive.Equal(first.LastActive))
}

func TestUserRepository_GetUnknown(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	_, err := NewUserRepository(db, slog.Default()).Get(404)
	req.ErrorIs(err, badger.ErrKeyNotFound)
}

func TestTransferLogRepository_RecentIsNewestFirst(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	repo := NewTransferLogRepository(db, slog.Default())

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		req.NoError(repo.Append(TransferRecord{
			UserID:   7,
			FileName: string(rune('a' + i)),
			At:       base.Add(time.Duration(i) * time.Minute),
			Success:  true,
		}))
	}

	records, err := repo.Recent(3)
	req.NoError(err)
	req.Len(records, 3)
	req.Equal("e", records[0].FileName)
	req.Equal("d", records[1].FileName)
	req.Equal("c", records[2].FileName)
}

func TestTransferLogRepository_FailureRecordKeepsError(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	repo := NewTransferLogRepository(db, slog.Default())
	req.NoError(repo.Append(TransferRecord{
		UserID:   7,
		FileName: "gone.bin",
		Success:  false,
		Error:    "remote item not found or link expired",
	}))

	records, err := repo.Recent(1)
	req.NoError(err)
	req.Len(records, 1)
	req.False(records[0].Success)
	req.Contains(records[0].Error, "not found")
}

func TestActiveTaskRepository_Lifecycle(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	repo := NewActiveTaskRepository(db, slog.Default())

	task := ActiveTask{
		ID:        "t-1",
		UserID:    7,
		ChatID:    42,
		Link:      "https://mega.nz/file/ABC#[redacted]",
		Status:    domain.StatusDownloading,
		CreatedAt: time.Now().UTC(),
	}
	req.NoError(repo.Upsert(task))

	task.Status = domain.StatusUploading
	req.NoError(repo.Upsert(task))

	tasks, err := repo.List()
	req.NoError(err)
	req.Len(tasks, 1)
	req.Equal(domain.StatusUploading, tasks[0].Status)

	// Terminal completion removes the mirror
	req.NoError(repo.Remove("t-1"))
	tasks, err = repo.List()
	req.NoError(err)
	req.Empty(tasks)
}

func TestActiveTaskRepository_StatusUpdateKeepsCreatedAt(t *testing.T) {
	req := require.New(t)
	db, cleanup := SetupTestDB(t)
	defer cleanup()

	repo := NewActiveTaskRepository(db, slog.Default())

	queuedAt := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	req.NoError(repo.Upsert(ActiveTask{
		ID:        "t-2",
		UserID:    7,
		ChatID:    42,
		Link:      "https://mega.nz/file/ABC#[redacted]",
		Status:    domain.StatusQueued,
		CreatedAt: queuedAt,
	}))

	// Status mirrors carry no creation time of their own
	req.NoError(repo.Upsert(ActiveTask{
		ID:     "t-2",
		UserID: 7,
		ChatID: 42,
		Link:   "https://mega.nz/file/ABC#[redacted]",
		Status: domain.StatusDownloading,
	}))

	tasks, err := repo.List()
	req.NoError(err)
	req.Len(tasks, 1)
	req.Equal(domain.StatusDownloading, tasks[0].Status)
	req.Equal(queuedAt, tasks[0].CreatedAt)
}
