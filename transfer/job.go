package transfer

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"

	"mega-relay/contract"
	"mega-relay/domain"
	"mega-relay/domain/event"
	"mega-relay/errors"
)

// StatusSink receives user-facing lifecycle updates from a running job.
// Every method is best-effort: implementations swallow their own errors
// and must never block the pipeline for long.
type StatusSink interface {
	// Stage replaces the status message with a new stage description.
	Stage(ctx context.Context, text string)
	// Progress reports a fractional [0,1] value for the current stream.
	Progress(ctx context.Context, fraction float64, name string)
	// Summary updates the folder sent/failed counters.
	Summary(ctx context.Context, sent, failed, total int)
}

// NopSink is used when there is no status message to drive.
type NopSink struct{}

func (NopSink) Stage(context.Context, string)             {}
func (NopSink) Progress(context.Context, float64, string) {}
func (NopSink) Summary(context.Context, int, int, int)    {}

// Options are the knobs of one transfer pipeline. Zero values are replaced
// by the observed production defaults.
type Options struct {
	WorkRoot        string
	MaxFileBytes    int64
	MaxFolderBytes  int64
	DownloadTimeout time.Duration
	UploadTimeout   time.Duration
	PacingDelay     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxFileBytes == 0 {
		o.MaxFileBytes = domain.MaxTransferBytes
	}
	if o.MaxFolderBytes == 0 {
		o.MaxFolderBytes = domain.DefaultMaxFolderBytes
	}
	if o.DownloadTimeout == 0 {
		o.DownloadTimeout = 5 * time.Minute
	}
	if o.UploadTimeout == 0 {
		o.UploadTimeout = 10 * time.Minute
	}
	return o
}

// Job executes one link-to-chat transfer:
// resolve -> download (file or folder) -> upload -> cleanup.
// The job exclusively owns its working directory until cleanup removes it.
// Delivered files are checkpointed in the sent set, so when the queue
// re-runs a failed job nothing already confirmed in chat goes out twice.
type Job struct {
	log       *slog.Logger
	task      *domain.TransferTask
	drive     contract.RemoteDrive
	chat      contract.ChatClient
	flattener *Flattener
	emitter   event.Emitter
	sink      StatusSink
	opts      Options

	sent map[string]bool
}

func NewJob(
	log *slog.Logger,
	task *domain.TransferTask,
	drive contract.RemoteDrive,
	chat contract.ChatClient,
	emitter event.Emitter,
	sink StatusSink,
	opts Options,
) *Job {
	if sink == nil {
		sink = NopSink{}
	}
	if emitter == nil {
		emitter = event.Discard{}
	}
	return &Job{
		log:       log.With("task", task.ID),
		task:      task,
		drive:     drive,
		chat:      chat,
		flattener: NewFlattener(log),
		emitter:   emitter,
		sink:      sink,
		opts:      opts.withDefaults(),
		sent:      make(map[string]bool),
	}
}

// Run drives the state machine to a terminal state. The working directory
// is removed on every path, success or failure.
func (j *Job) Run(ctx context.Context) (result *domain.TransferResult, err error) {
	workDir := j.workDir()
	defer cleanupPath(j.log, workDir)

	defer func() {
		if err != nil {
			j.task.Advance(domain.StatusFailed)
			j.emit(event.TaskFailed, func(e *event.Event) { e.Error = err.Error() })
			return
		}
		j.task.Advance(domain.StatusDone)
		j.emit(event.TaskDone, func(e *event.Event) {
			if result.IsFolder() {
				e.FileName = result.Folder.Name
				e.FileSize = result.Folder.TotalSize
			} else {
				e.FileName = result.File.Name
				e.FileSize = result.File.Size
			}
		})
	}()

	j.task.Advance(domain.StatusResolving)
	j.emit(event.TaskStatus, nil)
	j.sink.Stage(ctx, "🔍 Checking link...")

	resolveCtx, cancel := context.WithTimeout(ctx, j.opts.DownloadTimeout)
	node, err := j.drive.Resolve(resolveCtx, j.task.Link)
	cancel()
	if err != nil {
		return nil, timeoutAware(err)
	}

	if node.IsDir() {
		return j.runFolder(ctx, node, workDir)
	}
	return j.runFile(ctx, node, workDir)
}

func (j *Job) runFile(ctx context.Context, node domain.RemoteNode, workDir string) (*domain.TransferResult, error) {
	if node.Size() > j.opts.MaxFileBytes {
		// Rejected before any byte moves; cleanup still runs via Run's defer.
		return nil, fmt.Errorf("%w: %s is %s", errors.ErrFileTooLarge, node.Name(), domain.FormatBytes(node.Size()))
	}

	j.task.Advance(domain.StatusDownloading)
	j.emit(event.TaskStatus, nil)
	j.sink.Stage(ctx, fmt.Sprintf("⬇️ Downloading %s (%s)", node.Name(), domain.FormatBytes(node.Size())))

	dctx, cancel := context.WithTimeout(ctx, j.opts.DownloadTimeout)
	defer cancel()

	local, err := j.downloadLeaf(dctx, node, workDir, node.Name())
	if err != nil {
		return nil, err
	}
	j.emit(event.LeafDownloaded, func(e *event.Event) { e.FileName = local.Name; e.FileSize = local.Size })

	j.task.Advance(domain.StatusUploading)
	j.emit(event.TaskStatus, nil)
	j.sink.Stage(ctx, fmt.Sprintf("✅ File Loaded\n\nName: %s\nSize: %s\n\n📤 Sending to Telegram...",
		local.Name, domain.FormatBytes(local.Size)))

	uctx, cancelUpload := context.WithTimeout(ctx, j.opts.UploadTimeout)
	defer cancelUpload()

	if err := j.deliver(uctx, local, local.Name); err != nil {
		return nil, err
	}

	return &domain.TransferResult{
		File: &domain.FileResult{Path: local.Path, Name: local.Name, Size: local.Size},
	}, nil
}

func (j *Job) runFolder(ctx context.Context, node domain.RemoteNode, workDir string) (*domain.TransferResult, error) {
	j.task.Advance(domain.StatusDownloading)
	j.emit(event.TaskStatus, nil)
	j.sink.Stage(ctx, fmt.Sprintf("📁 Listing folder %s...", node.Name()))

	dctx, cancel := context.WithTimeout(ctx, j.opts.DownloadTimeout)
	defer cancel()

	leaves, err := j.flattener.Flatten(dctx, node)
	if err != nil {
		return nil, timeoutAware(err)
	}
	if len(leaves) == 0 {
		return nil, errors.ErrEmptyFolder
	}

	totalSize := lo.SumBy(leaves, func(l domain.LeafFile) int64 { return l.Size })
	if totalSize > j.opts.MaxFolderBytes {
		return nil, fmt.Errorf("%w: folder is %s", errors.ErrFileTooLarge, domain.FormatBytes(totalSize))
	}

	folderDir := filepath.Join(workDir, domain.SanitizeFilename(node.Name()))

	var downloaded []domain.DownloadedFile
	var downloadedKeys []string
	var partialErrors []string

	for i, leaf := range leaves {
		if j.sent[leaf.RelPath] {
			// Confirmed delivered on a previous attempt of this job;
			// nothing to re-download or re-send.
			continue
		}

		j.sink.Progress(dctx, float64(i)/float64(len(leaves)), leaf.Name)

		local, err := j.downloadLeaf(dctx, leaf.Node, folderDir, leaf.RelPath)
		if err != nil {
			// One leaf failing must not sink its siblings.
			j.log.Error("Leaf download failed", "leaf", leaf.RelPath, "error", err)
			partialErrors = append(partialErrors, fmt.Sprintf("%s: %v", leaf.Name, err))
			j.emit(event.LeafFailed, func(e *event.Event) { e.FileName = leaf.Name; e.Error = err.Error() })
			continue
		}

		downloaded = append(downloaded, local)
		downloadedKeys = append(downloadedKeys, leaf.RelPath)
		j.emit(event.LeafDownloaded, func(e *event.Event) { e.FileName = local.Name; e.FileSize = local.Size })
	}
	j.sink.Progress(dctx, 1, node.Name())

	alreadySent := lo.CountBy(leaves, func(l domain.LeafFile) bool { return j.sent[l.RelPath] })
	if len(downloaded) == 0 && alreadySent == 0 {
		return nil, errors.ErrAllDownloadsFailed
	}

	j.task.Advance(domain.StatusUploading)
	j.emit(event.TaskStatus, nil)

	sent, failed := alreadySent, len(partialErrors)
	for i, local := range downloaded {
		if local.Size > j.opts.MaxFileBytes {
			// Oversized leaves are skipped and counted, never fatal here.
			failed++
			partialErrors = append(partialErrors, fmt.Sprintf("%s: exceeds %s", local.Name, domain.FormatBytes(j.opts.MaxFileBytes)))
			j.sink.Summary(ctx, sent, failed, len(leaves))
			continue
		}

		uctx, cancelUpload := context.WithTimeout(ctx, j.opts.UploadTimeout)
		err := j.deliver(uctx, local, downloadedKeys[i])
		cancelUpload()

		if err != nil {
			failed++
			partialErrors = append(partialErrors, fmt.Sprintf("%s: %v", local.Name, err))
		} else {
			sent++
		}
		j.sink.Summary(ctx, sent, failed, len(leaves))

		if i < len(downloaded)-1 && j.opts.PacingDelay > 0 {
			// Fixed pacing between uploads keeps us under chat rate limits.
			pause(ctx, j.opts.PacingDelay)
		}
	}

	return &domain.TransferResult{
		Folder: &domain.FolderResult{
			FolderPath:    folderDir,
			Name:          node.Name(),
			Files:         downloaded,
			FileCount:     len(downloaded),
			TotalSize:     totalSize,
			Sent:          sent,
			Failed:        failed,
			PartialErrors: partialErrors,
		},
	}, nil
}

// downloadLeaf streams one remote file into the working directory.
// A failed stream leaves no partial file behind.
func (j *Job) downloadLeaf(ctx context.Context, node domain.RemoteNode, dir, relPath string) (domain.DownloadedFile, error) {
	target := filepath.Join(dir, sanitizeRel(relPath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return domain.DownloadedFile{}, fmt.Errorf("%w: %v", errors.ErrDownload, err)
	}

	stream, err := node.Open(ctx)
	if err != nil {
		return domain.DownloadedFile{}, timeoutAware(fmt.Errorf("%w: %v", errors.ErrDownload, err))
	}

	out, err := os.Create(target)
	if err != nil {
		return domain.DownloadedFile{}, fmt.Errorf("%w: %v", errors.ErrDownload, err)
	}

	tracker := &progressWriter{
		total: node.Size(),
		report: func(fraction float64) {
			j.sink.Progress(ctx, fraction, node.Name())
		},
	}

	if _, err := io.Copy(io.MultiWriter(out, tracker), contextReader(ctx, stream)); err != nil {
		stream.Close()
		out.Close()
		os.Remove(target)
		return domain.DownloadedFile{}, timeoutAware(fmt.Errorf("%w: %v", errors.ErrDownload, err))
	}

	// Backends verify stream integrity on Close. A failure here means the
	// bytes on disk cannot be trusted, so the file must not survive.
	if err := stream.Close(); err != nil {
		out.Close()
		os.Remove(target)
		return domain.DownloadedFile{}, timeoutAware(fmt.Errorf("closing stream: %w", err))
	}

	if err := out.Close(); err != nil {
		os.Remove(target)
		return domain.DownloadedFile{}, fmt.Errorf("%w: %v", errors.ErrDownload, err)
	}

	return domain.DownloadedFile{Path: target, Name: node.Name(), Size: node.Size()}, nil
}

// deliver sends a local file to the chat over the streaming path, falling
// back to the simple classified send. On success the leaf is checkpointed
// so job retries never duplicate it.
func (j *Job) deliver(ctx context.Context, file domain.DownloadedFile, key string) error {
	upload := domain.FileUpload{
		ChatID:  j.task.ChatID,
		Path:    file.Path,
		Name:    file.Name,
		Size:    file.Size,
		Class:   domain.ClassifyFile(file.Path, file.Name),
		Caption: fmt.Sprintf("%s\nSize: %s", file.Name, domain.FormatBytes(file.Size)),
		Progress: func(fraction float64) {
			j.sink.Progress(ctx, fraction, file.Name)
		},
	}

	if err := j.chat.SendFile(ctx, upload); err != nil {
		j.log.Warn("Streamed upload failed, using simple path", "file", file.Name, "error", err)
		if err := j.chat.SendFileSimple(ctx, upload); err != nil {
			return timeoutAware(fmt.Errorf("%w: %v", errors.ErrUpload, err))
		}
	}

	j.sent[key] = true
	j.emit(event.FileDelivered, func(e *event.Event) { e.FileName = file.Name; e.FileSize = file.Size })
	return nil
}

func (j *Job) workDir() string {
	return filepath.Join(j.opts.WorkRoot, fmt.Sprintf("%d", j.task.UserID), j.task.ID)
}

func (j *Job) emit(t event.Type, fill func(e *event.Event)) {
	e := event.Event{
		Type:      t,
		TaskID:    j.task.ID,
		ChatID:    j.task.ChatID,
		UserID:    j.task.UserID,
		Username:  j.task.Username,
		FirstName: j.task.FirstName,
		Link:      j.task.Link.Redacted(),
		Status:    j.task.Status,
	}
	if fill != nil {
		fill(&e)
	}
	j.emitter.Emit(e)
}

// cleanupPath removes the working directory. Idempotent: an already-gone
// path is success, and any other failure is only logged.
func cleanupPath(log *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		log.Error("Cleanup failed", "path", path, "error", err)
	}
}

// sanitizeRel sanitizes each path segment while keeping the tree shape.
func sanitizeRel(relPath string) string {
	segments := strings.Split(relPath, "/")
	for i, s := range segments {
		segments[i] = domain.SanitizeFilename(s)
	}
	return filepath.Join(segments...)
}

// timeoutAware translates context deadline errors into the transfer
// timeout sentinel while leaving other failures untouched.
func timeoutAware(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errors.ErrTimeout, err)
	}
	return err
}

func pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type progressWriter struct {
	total   int64
	written int64
	report  func(fraction float64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 && p.report != nil {
		p.report(float64(p.written) / float64(p.total))
	}
	return len(b), nil
}

// contextReader makes io.Copy abort promptly when the leg's deadline fires,
// since not every backend stream honours cancellation on its own.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func contextReader(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
