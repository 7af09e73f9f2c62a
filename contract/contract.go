package contract

import (
	"context"
	"reflect"

	"mega-relay/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ChatClient is the messaging platform seen as a capability. One shared,
// explicitly constructed client is injected everywhere; no ambient globals.
type ChatClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) (domain.MessageRef, error)
	EditMessage(ctx context.Context, ref domain.MessageRef, text string) error
	DeleteMessage(ctx context.Context, ref domain.MessageRef) error

	// SendFile delivers a local file with progress callbacks over the
	// high-capacity path. Implementations that cannot stream must return an
	// error so the caller can fall back to SendFileSimple.
	SendFile(ctx context.Context, upload domain.FileUpload) error

	// SendFileSimple is the degraded path: no progress, method chosen by
	// coarse media class.
	SendFileSimple(ctx context.Context, upload domain.FileUpload) error

	// SelfMember reports the bot's own membership in a chat.
	SelfMember(ctx context.Context, chatID int64) (domain.MemberInfo, error)
}

// RemoteDrive is the remote storage backend seen as a capability.
type RemoteDrive interface {
	// Resolve turns a normalized link into a node handle.
	Resolve(ctx context.Context, link domain.RemoteLink) (domain.RemoteNode, error)

	// AccountInfo reports connection state and quota for the /status command.
	AccountInfo(ctx context.Context) (domain.AccountInfo, error)
}
