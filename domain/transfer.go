package domain

import "time"

type Status string

const (
	StatusQueued      Status = "queued"
	StatusResolving   Status = "resolving"
	StatusDownloading Status = "downloading"
	StatusUploading   Status = "uploading"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

var statusRank = map[Status]int{
	StatusQueued:      0,
	StatusResolving:   1,
	StatusDownloading: 2,
	StatusUploading:   3,
	StatusDone:        4,
	StatusFailed:      4,
}

// TransferTask is the record of one link-to-chat transfer.
// Its status only ever advances; it is mirrored to storage for
// observability and removed on terminal completion.
type TransferTask struct {
	ID        string
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	ChatType  ChatType
	Link      RemoteLink
	Status    Status
	CreatedAt time.Time
}

// Advance moves the task status forward. Regressions are ignored so a
// late progress callback can never rewind a terminal state.
func (t *TransferTask) Advance(next Status) bool {
	if statusRank[next] < statusRank[t.Status] {
		return false
	}
	t.Status = next
	return true
}

func (t *TransferTask) Terminal() bool {
	return t.Status == StatusDone || t.Status == StatusFailed
}

// TransferRequest is the validated shape a chat message must reduce to
// before a task is built from it.
type TransferRequest struct {
	Link   string `validate:"required,max=1024,contains=mega.nz"`
	ChatID int64  `validate:"required"`
	UserID int64  `validate:"required"`
}

// LeafFile describes one downloadable file discovered while flattening
// a remote folder. Immutable once produced.
type LeafFile struct {
	RelPath string
	Name    string
	Size    int64
	Node    RemoteNode
}

// DownloadedFile is a leaf that made it to local disk. The owning task
// is the only component allowed to delete it.
type DownloadedFile struct {
	Path string
	Name string
	Size int64
}

// FileResult is the outcome of a single-file transfer.
type FileResult struct {
	Path string
	Name string
	Size int64
}

// FolderResult is the outcome of a folder transfer. Sent and Failed are
// the delivery counters as the job saw them; PartialErrors lists the
// leaves that failed to download or deliver without failing the whole job.
type FolderResult struct {
	FolderPath    string
	Name          string
	Files         []DownloadedFile
	FileCount     int
	TotalSize     int64
	Sent          int
	Failed        int
	PartialErrors []string
}

// TransferResult is a tagged union: exactly one of File or Folder is set.
type TransferResult struct {
	File   *FileResult
	Folder *FolderResult
}

func (r *TransferResult) IsFolder() bool {
	return r != nil && r.Folder != nil
}
