package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"mega-relay/contract"
	"mega-relay/domain"
	"mega-relay/domain/event"
	"mega-relay/errors"
	"mega-relay/transfer"
)

type IRelayService interface {
	Relay(ctx context.Context, msg domain.InboundMessage, link domain.RemoteLink)
	StatusReport(ctx context.Context) string
}

// RelayService coordinates one link-to-chat transfer end to end: it turns a
// detected link into a validated task, drives the status message the user
// watches, submits the pipeline to the serial queue and reports the outcome.
type RelayService struct {
	log      *slog.Logger
	validate *validator.Validate
	chat     contract.ChatClient
	drive    contract.RemoteDrive
	queue    *transfer.Queue
	emitter  event.Emitter
	opts     transfer.Options
	throttle time.Duration

	// operatorChatID receives unredacted failure reports; zero disables it.
	operatorChatID int64
}

func NewRelayService(
	log *slog.Logger,
	chat contract.ChatClient,
	drive contract.RemoteDrive,
	queue *transfer.Queue,
	emitter event.Emitter,
	opts transfer.Options,
	throttle time.Duration,
	operatorChatID int64,
) *RelayService {
	if emitter == nil {
		emitter = event.Discard{}
	}
	if throttle <= 0 {
		throttle = transfer.DefaultProgressThrottle
	}
	return &RelayService{
		log:            log,
		validate:       validator.New(),
		chat:           chat,
		drive:          drive,
		queue:          queue,
		emitter:        emitter,
		opts:           opts,
		throttle:       throttle,
		operatorChatID: operatorChatID,
	}
}

// Relay blocks until the transfer resolves. Retries inside the queue are
// invisible here: the submission channel yields exactly one outcome.
func (s *RelayService) Relay(ctx context.Context, msg domain.InboundMessage, link domain.RemoteLink) {
	// Channel posts carry no sender, fall back to the chat itself.
	userID := msg.UserID
	if userID == 0 {
		userID = msg.ChatID
	}

	request := domain.TransferRequest{Link: link.String(), ChatID: msg.ChatID, UserID: userID}
	if err := s.validate.Struct(request); err != nil {
		s.log.Warn("Rejecting transfer request", "chat", msg.ChatID, "error", err)
		s.reply(ctx, msg.ChatID, "❌ Invalid MEGA link.")
		return
	}

	task := &domain.TransferTask{
		ID:        uuid.NewString(),
		ChatID:    msg.ChatID,
		UserID:    userID,
		Username:  msg.Username,
		FirstName: msg.FirstName,
		ChatType:  msg.ChatType,
		Link:      link,
		Status:    domain.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	s.log.Info("Queueing transfer", "task", task.ID, "chat", task.ChatID, "link", link.Redacted())
	s.emitter.Emit(event.Event{
		Type: event.TaskQueued, TaskID: task.ID, ChatID: task.ChatID,
		UserID: task.UserID, Username: task.Username, FirstName: task.FirstName,
		Link: link.Redacted(), Status: task.Status,
	})

	statusRef, sink := s.openStatus(ctx, task)

	job := transfer.NewJob(s.log, task, s.drive, s.chat, s.emitter, sink, s.opts)

	select {
	case outcome := <-s.queue.Submit(job.Run):
		if outcome.Err != nil {
			s.reportFailure(ctx, task, statusRef, outcome.Err)
			return
		}
		s.reportSuccess(ctx, task, statusRef, outcome.Result)
	case <-ctx.Done():
	}
}

// StatusReport renders the /status answer: remote account state plus
// queue depth.
func (s *RelayService) StatusReport(ctx context.Context) string {
	var b strings.Builder
	b.WriteString("📊 Relay Status\n\n")

	info, err := s.drive.AccountInfo(ctx)
	if err != nil {
		b.WriteString("MEGA: ⚠️ unreachable\n")
		s.log.Error("Account info failed", "error", err)
	} else {
		fmt.Fprintf(&b, "MEGA: ✅ %s\n", info.Connection)
		if info.SpaceTotal > 0 {
			fmt.Fprintf(&b, "Storage: %s used of %s\n",
				domain.FormatBytes(info.SpaceUsed), domain.FormatBytes(info.SpaceTotal))
		}
	}

	fmt.Fprintf(&b, "Queue: %d waiting", s.queue.Len())
	return b.String()
}

// openStatus creates the status message the job will edit in place. When the
// chat refuses even that, the transfer still runs with a silent sink.
func (s *RelayService) openStatus(ctx context.Context, task *domain.TransferTask) (domain.MessageRef, transfer.StatusSink) {
	ref, err := s.chat.SendMessage(ctx, task.ChatID, "🔍 Processing MEGA Link\n\nChecking link...")
	if err != nil {
		s.log.Warn("Cannot send status message", "chat", task.ChatID, "error", err)
		return domain.MessageRef{}, transfer.NopSink{}
	}

	edit := func(ctx context.Context, text string) error {
		return s.chat.EditMessage(ctx, ref, text)
	}

	return ref, &chatStatusSink{
		edit:     edit,
		reporter: transfer.NewReporter(s.log, s.throttle, time.Now, edit),
		now:      time.Now,
		throttle: s.throttle,
	}
}

func (s *RelayService) reportSuccess(ctx context.Context, task *domain.TransferTask, statusRef domain.MessageRef, result *domain.TransferResult) {
	s.closeStatus(ctx, statusRef)

	if result.IsFolder() {
		s.reply(ctx, task.ChatID, folderSummary(result.Folder))
		return
	}
	s.reply(ctx, task.ChatID, fmt.Sprintf("✅ File sent successfully!\n\n%s (%s)",
		result.File.Name, domain.FormatBytes(result.File.Size)))
}

// reportFailure tells the user what went wrong without leaking the link key,
// and forwards the raw detail to the operator chat when one is configured.
func (s *RelayService) reportFailure(ctx context.Context, task *domain.TransferTask, statusRef domain.MessageRef, err error) {
	s.log.Error("Transfer failed", "task", task.ID, "link", task.Link.Redacted(), "error", err)

	text := failureText(err)
	if statusRef.MessageID != 0 {
		if editErr := s.chat.EditMessage(ctx, statusRef, text); editErr == nil {
			s.notifyOperator(ctx, task, err)
			return
		}
	}
	s.reply(ctx, task.ChatID, text)
	s.notifyOperator(ctx, task, err)
}

func (s *RelayService) notifyOperator(ctx context.Context, task *domain.TransferTask, err error) {
	if s.operatorChatID == 0 {
		return
	}

	sender := task.Username
	if sender == "" {
		sender = task.FirstName
	}
	report := fmt.Sprintf("⚠️ Transfer failed\n\nTask: %s\nChat: %d (%s)\nFrom: %s (%d)\nLink: %s\nError: %v",
		task.ID, task.ChatID, task.ChatType, sender, task.UserID, task.Link.String(), err)

	if _, sendErr := s.chat.SendMessage(ctx, s.operatorChatID, report); sendErr != nil {
		s.log.Error("Operator report failed", "error", sendErr)
	}
}

func (s *RelayService) closeStatus(ctx context.Context, ref domain.MessageRef) {
	if ref.MessageID == 0 {
		return
	}
	if err := s.chat.DeleteMessage(ctx, ref); err != nil {
		s.log.Debug("Cannot delete status message", "error", err)
	}
}

func (s *RelayService) reply(ctx context.Context, chatID int64, text string) {
	if _, err := s.chat.SendMessage(ctx, chatID, text); err != nil {
		s.log.Error("Reply failed", "chat", chatID, "error", err)
	}
}

func folderSummary(folder *domain.FolderResult) string {
	var b strings.Builder
	b.WriteString("✅ Folder Transfer Complete!\n\n")
	fmt.Fprintf(&b, "📁 Folder: %s\n", folder.Name)
	fmt.Fprintf(&b, "📊 Total Files: %d\n", folder.FileCount)
	fmt.Fprintf(&b, "✅ Sent Successfully: %d\n", folder.Sent)

	if folder.Failed > 0 {
		fmt.Fprintf(&b, "❌ Failed/Skipped: %d\n", folder.Failed)
	}
	fmt.Fprintf(&b, "💾 Total Size: %s", domain.FormatBytes(folder.TotalSize))
	return b.String()
}

// failureText maps pipeline sentinels onto the remediation hints shown to
// the user. The raw error never appears here.
func failureText(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrInvalidLink):
		return "❌ Invalid MEGA link.\n\nPlease check:\n1. Link is correct and not expired\n2. Includes #key at the end"
	case stderrors.Is(err, errors.ErrNotFound):
		return "❌ Download Failed\n\nThe file or folder does not exist, or the link expired."
	case stderrors.Is(err, errors.ErrDecryption):
		return "❌ Download Failed\n\nThe decryption key is missing or wrong. Make sure the link includes #key at the end."
	case stderrors.Is(err, errors.ErrFileTooLarge):
		return "❌ File Too Large\n\n⚠️ Telegram limit is 2GB per file."
	case stderrors.Is(err, errors.ErrEnumeration):
		return "❌ Download Failed\n\nThe folder contents could not be listed. Please try again."
	case stderrors.Is(err, errors.ErrEmptyFolder):
		return "❌ Download Failed\n\nThe folder is empty."
	case stderrors.Is(err, errors.ErrAllDownloadsFailed):
		return "❌ Download Failed\n\nNone of the files in the folder could be downloaded."
	case stderrors.Is(err, errors.ErrTimeout):
		return "❌ Transfer Timed Out\n\nThe file may be too large or the connection too slow. Please try again."
	case stderrors.Is(err, errors.ErrUpload):
		return "❌ Failed to Send\n\nThe file was downloaded but could not be delivered to this chat."
	case stderrors.Is(err, errors.ErrQueueClosed):
		return "❌ The relay is shutting down. Please resend the link later."
	default:
		return "❌ Download Failed\n\nPlease check:\n1. Link is correct and not expired\n2. Includes #key at the end\n3. File/folder exists"
	}
}

// chatStatusSink drives the status message: stages replace the text,
// stream progress goes through the throttled reporter, folder counters are
// throttled here with the same window.
type chatStatusSink struct {
	edit     transfer.EditFunc
	reporter *transfer.Reporter
	now      func() time.Time
	throttle time.Duration

	lastSummary time.Time
}

func (c *chatStatusSink) Stage(ctx context.Context, text string) {
	// A new stage means a new stream follows; the reporter must accept
	// percentages below whatever the previous stream reached.
	c.reporter.Reset()
	_ = c.edit(ctx, text)
}

func (c *chatStatusSink) Progress(ctx context.Context, fraction float64, name string) {
	c.reporter.Report(ctx, fraction, name)
}

func (c *chatStatusSink) Summary(ctx context.Context, sent, failed, total int) {
	ts := c.now()
	final := sent+failed == total
	if !final && ts.Sub(c.lastSummary) < c.throttle {
		return
	}
	c.lastSummary = ts

	_ = c.edit(ctx, fmt.Sprintf("📤 Sending Files\n\n✅ Sent: %d/%d\n❌ Failed: %d", sent, total, failed))
}
