package workers

import (
	"context"
	"log/slog"

	"mega-relay/domain/event"
	"mega-relay/infrastructure/storage"
)

// Recorder turns pipeline events into storage writes. Everything here is
// best-effort: a failed write is logged and dropped, the transfer that
// emitted the event is long gone and must not care.
type Recorder struct {
	log    *slog.Logger
	events <-chan event.Event
	users  storage.IUserRepository
	logs   storage.ITransferLogRepository
	active storage.IActiveTaskRepository
}

func NewRecorder(
	log *slog.Logger,
	events <-chan event.Event,
	users storage.IUserRepository,
	logs storage.ITransferLogRepository,
	active storage.IActiveTaskRepository,
) *Recorder {
	return &Recorder{log: log, events: events, users: users, logs: logs, active: active}
}

func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-r.events:
			if !ok {
				return nil
			}
			r.record(e)
		}
	}
}

func (r *Recorder) record(e event.Event) {
	switch e.Type {
	case event.TaskQueued:
		r.try(r.users.Touch(e.UserID, e.Username, e.FirstName), e)
		r.try(r.active.Upsert(storage.ActiveTask{
			ID: e.TaskID, UserID: e.UserID, ChatID: e.ChatID,
			Link: e.Link, Status: e.Status, CreatedAt: e.At,
		}), e)

	case event.TaskStatus:
		r.try(r.active.Upsert(storage.ActiveTask{
			ID: e.TaskID, UserID: e.UserID, ChatID: e.ChatID,
			Link: e.Link, Status: e.Status,
		}), e)

	case event.FileDelivered:
		r.try(r.users.RecordDownload(e.UserID, e.FileSize), e)
		r.try(r.logs.Append(storage.TransferRecord{
			UserID: e.UserID, FileName: e.FileName, FileSize: e.FileSize,
			Link: e.Link, Success: true, At: e.At,
		}), e)

	case event.LeafFailed:
		r.try(r.logs.Append(storage.TransferRecord{
			UserID: e.UserID, FileName: e.FileName,
			Link: e.Link, Success: false, Error: e.Error, At: e.At,
		}), e)

	case event.TaskDone:
		r.try(r.active.Remove(e.TaskID), e)

	case event.TaskFailed:
		r.try(r.logs.Append(storage.TransferRecord{
			UserID: e.UserID, FileName: e.FileName,
			Link: e.Link, Success: false, Error: e.Error, At: e.At,
		}), e)
		r.try(r.active.Remove(e.TaskID), e)

	case event.WorkerRestarted:
		r.log.Warn("Worker restarted after crash", "worker", e.WorkerName, "error", e.Error)

	case event.LeafDownloaded:
		// No storage side effect.
	}
}

func (r *Recorder) try(err error, e event.Event) {
	if err != nil {
		r.log.Error("Recording event failed", "type", e.Type, "task", e.TaskID, "error", err)
	}
}
