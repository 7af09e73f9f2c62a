package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"mega-relay/domain"
)

// ActiveTask mirrors an in-flight transfer for observability only.
// The pipeline never reads it back; it exists so an operator can see
// what the relay is doing (cmd/inspect) and what it was doing when it
// died. Removed on terminal completion.
type ActiveTask struct {
	ID        string        `json:"id"`
	UserID    int64         `json:"user_id"`
	ChatID    int64         `json:"chat_id"`
	Link      string        `json:"link"`
	Status    domain.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type IActiveTaskRepository interface {
	Upsert(task ActiveTask) error
	Remove(id string) error
	List() ([]ActiveTask, error)
}

type ActiveTaskRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewActiveTaskRepository(db *badger.DB, log *slog.Logger) *ActiveTaskRepository {
	return &ActiveTaskRepository{db: db, log: log}
}

const activeTaskPrefix = "task:active:"

func activeTaskKey(id string) []byte {
	return []byte(activeTaskPrefix + id)
}

func (r *ActiveTaskRepository) Upsert(task ActiveTask) error {
	task.UpdatedAt = time.Now().UTC()
	return r.db.Update(func(txn *badger.Txn) error {
		key := activeTaskKey(task.ID)

		// Status-only updates arrive without a creation time; keep the
		// one written when the task was queued.
		if task.CreatedAt.IsZero() {
			if item, err := txn.Get(key); err == nil {
				var existing ActiveTask
				err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &existing)
				})
				if err == nil {
					task.CreatedAt = existing.CreatedAt
				}
			}
		}

		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("marshal failed: %w", err)
		}
		return txn.Set(key, data)
	})
}

func (r *ActiveTaskRepository) Remove(id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(activeTaskKey(id))
	})
}

func (r *ActiveTaskRepository) List() ([]ActiveTask, error) {
	var tasks []ActiveTask

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(activeTaskPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var task ActiveTask
				if err := json.Unmarshal(val, &task); err != nil {
					return err
				}
				tasks = append(tasks, task)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during task scan: %w", err)
	}

	return tasks, nil
}
