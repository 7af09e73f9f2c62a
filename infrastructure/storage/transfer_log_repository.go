package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// TransferRecord is the immutable audit line written once per finished
// transfer, success or failure.
type TransferRecord struct {
	UserID   int64     `json:"user_id"`
	FileName string    `json:"file_name"`
	FileSize int64     `json:"file_size"`
	Link     string    `json:"link"`
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

type ITransferLogRepository interface {
	Append(record TransferRecord) error
	Recent(limit int) ([]TransferRecord, error)
}

type TransferLogRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewTransferLogRepository(db *badger.DB, log *slog.Logger) *TransferLogRepository {
	return &TransferLogRepository{db: db, log: log}
}

const transferLogPrefix = "log:transfer:"

// Append persists the record under a time-ordered key.
// The 19-digit zero padding keeps lexicographic order chronological, and
// the UUID suffix disambiguates records landing on the same nanosecond.
func (r *TransferLogRepository) Append(record TransferRecord) error {
	if record.At.IsZero() {
		record.At = time.Now().UTC()
	}

	key := fmt.Sprintf("%s%019d:%s", transferLogPrefix, record.At.UnixNano(), uuid.New())
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Recent returns up to limit records, newest first.
func (r *TransferLogRepository) Recent(limit int) ([]TransferRecord, error) {
	var records []TransferRecord

	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(transferLogPrefix)
		// Reverse iteration needs a seek key past the last possible entry.
		seekKey := append(append([]byte{}, prefix...), 0xFF)

		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(records) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record TransferRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during log scan: %w", err)
	}

	return records, nil
}
