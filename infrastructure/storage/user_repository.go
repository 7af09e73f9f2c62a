package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// User is the persisted per-submitter record: identity plus cumulative
// transfer totals. Purely observational; the pipeline never reads it.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`
	TotalDownloads int64     `json:"total_downloads"`
	TotalBytes     int64     `json:"total_bytes"`
	LastActive     time.Time `json:"last_active"`
}

type IUserRepository interface {
	Touch(id int64, username, firstName string) error
	RecordDownload(id int64, bytes int64) error
	Get(id int64) (User, error)
}

type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

func userKey(id int64) []byte {
	return []byte(fmt.Sprintf("user:%d", id))
}

// Touch upserts the identity fields and bumps the last-active timestamp.
// First contact also sets the joined-at date.
func (r *UserRepository) Touch(id int64, username, firstName string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		user, err := readUser(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			user = User{ID: id, JoinedAt: time.Now().UTC()}
		} else if err != nil {
			return err
		}

		user.Username = username
		user.FirstName = firstName
		user.LastActive = time.Now().UTC()
		return writeUser(txn, user)
	})
}

// RecordDownload adds one completed transfer to the user's running totals.
func (r *UserRepository) RecordDownload(id int64, bytes int64) error {
	return r.db.Update(func(txn *badger.Txn) error {
		user, err := readUser(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			user = User{ID: id, JoinedAt: time.Now().UTC()}
		} else if err != nil {
			return err
		}

		user.TotalDownloads++
		user.TotalBytes += bytes
		user.LastActive = time.Now().UTC()
		return writeUser(txn, user)
	})
}

func (r *UserRepository) Get(id int64) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		found, err := readUser(txn, id)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	return user, err
}

func readUser(txn *badger.Txn, id int64) (User, error) {
	item, err := txn.Get(userKey(id))
	if err != nil {
		return User{}, err
	}

	var user User
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &user)
	})
	return user, err
}

func writeUser(txn *badger.Txn, user User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(userKey(user.ID), data)
}
