package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mega-relay/domain"
	"mega-relay/errors"
	"mega-relay/transfer"
)

type stubNode struct {
	name string
	data []byte
}

func (n *stubNode) ID() string   { return n.name }
func (n *stubNode) Name() string { return n.name }
func (n *stubNode) Size() int64  { return int64(len(n.data)) }
func (n *stubNode) IsDir() bool  { return false }

func (n *stubNode) Children(context.Context) ([]domain.RemoteNode, error) {
	return nil, nil
}

func (n *stubNode) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(n.data)), nil
}

type stubDrive struct {
	node       domain.RemoteNode
	resolveErr error
	info       domain.AccountInfo
}

func (d *stubDrive) Resolve(context.Context, domain.RemoteLink) (domain.RemoteNode, error) {
	return d.node, d.resolveErr
}

func (d *stubDrive) AccountInfo(context.Context) (domain.AccountInfo, error) {
	return d.info, nil
}

type recordedMessage struct {
	ChatID int64
	Text   string
}

type stubChat struct {
	mu       sync.Mutex
	sent     []recordedMessage
	edits    []string
	deletes  []domain.MessageRef
	uploads  []string
	sendErr  error
	uploaded chan struct{}
}

func newStubChat() *stubChat {
	return &stubChat{uploaded: make(chan struct{}, 16)}
}

func (c *stubChat) SendMessage(_ context.Context, chatID int64, text string) (domain.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return domain.MessageRef{}, c.sendErr
	}
	c.sent = append(c.sent, recordedMessage{chatID, text})
	return domain.MessageRef{ChatID: chatID, MessageID: len(c.sent)}, nil
}

func (c *stubChat) EditMessage(_ context.Context, _ domain.MessageRef, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, text)
	return nil
}

func (c *stubChat) DeleteMessage(_ context.Context, ref domain.MessageRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, ref)
	return nil
}

func (c *stubChat) SendFile(_ context.Context, upload domain.FileUpload) error {
	c.mu.Lock()
	c.uploads = append(c.uploads, upload.Name)
	c.mu.Unlock()
	c.uploaded <- struct{}{}
	return nil
}

func (c *stubChat) SendFileSimple(context.Context, domain.FileUpload) error { return nil }

func (c *stubChat) SelfMember(context.Context, int64) (domain.MemberInfo, error) {
	return domain.MemberInfo{Status: "member"}, nil
}

func (c *stubChat) messages() []recordedMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recordedMessage{}, c.sent...)
}

func (c *stubChat) editTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.edits...)
}

func startQueue(t *testing.T) *transfer.Queue {
	t.Helper()
	queue := transfer.NewQueue(slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = queue.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return queue
}

func testLink(t *testing.T) domain.RemoteLink {
	t.Helper()
	link, err := domain.ParseLink("https://mega.nz/file/ABC123#keykey")
	require.NoError(t, err)
	return link
}

func testMessage() domain.InboundMessage {
	return domain.InboundMessage{
		ChatID:   42,
		ChatType: domain.ChatPrivate,
		UserID:   7,
		Username: "alice",
	}
}

func testService(t *testing.T, chat *stubChat, drive *stubDrive, operatorChatID int64) *RelayService {
	t.Helper()
	opts := transfer.Options{
		WorkRoot:        t.TempDir(),
		DownloadTimeout: 5 * time.Second,
		UploadTimeout:   5 * time.Second,
	}
	return NewRelayService(slog.Default(), chat, drive, startQueue(t), nil, opts, time.Millisecond, operatorChatID)
}

func TestRelayService_FileSuccessCleansStatusMessage(t *testing.T) {
	req := require.New(t)
	chat := newStubChat()
	drive := &stubDrive{node: &stubNode{name: "report.pdf", data: []byte("content")}}
	service := testService(t, chat, drive, 0)

	service.Relay(context.Background(), testMessage(), testLink(t))

	req.Equal([]string{"report.pdf"}, chat.uploads)
	req.Len(chat.deletes, 1)

	msgs := chat.messages()
	req.GreaterOrEqual(len(msgs), 2)
	req.Contains(msgs[0].Text, "Checking link")
	req.Contains(msgs[len(msgs)-1].Text, "File sent successfully")
}

func TestRelayService_FailureEditsStatusAndReportsToOperator(t *testing.T) {
	req := require.New(t)
	chat := newStubChat()
	drive := &stubDrive{resolveErr: errors.ErrNotFound}
	service := testService(t, chat, drive, 999)

	service.Relay(context.Background(), testMessage(), testLink(t))

	// Resolution fails on all three queue attempts, then the user is told
	edits := chat.editTexts()
	req.NotEmpty(edits)
	req.Contains(edits[len(edits)-1], "does not exist")

	// The operator gets the unredacted link and the raw error
	msgs := chat.messages()
	operator := msgs[len(msgs)-1]
	req.Equal(int64(999), operator.ChatID)
	req.Contains(operator.Text, "https://mega.nz/file/ABC123#keykey")
	req.Contains(operator.Text, "alice")
	req.Contains(operator.Text, "not found")
}

func TestRelayService_SilentSinkWhenStatusMessageFails(t *testing.T) {
	req := require.New(t)
	chat := newStubChat()
	chat.sendErr = errors.ErrUpload
	drive := &stubDrive{node: &stubNode{name: "a.bin", data: []byte("x")}}
	service := testService(t, chat, drive, 0)

	// No status message, no replies, but the file still goes through
	service.Relay(context.Background(), testMessage(), testLink(t))
	req.Equal([]string{"a.bin"}, chat.uploads)
}

func TestFolderSummary_UsesDeliveryCounters(t *testing.T) {
	req := require.New(t)

	// Three leaves: one failed to download, two were delivered. The
	// download casualty is already outside FileCount and must not be
	// subtracted again.
	summary := folderSummary(&domain.FolderResult{
		Name:          "pack",
		FileCount:     2,
		TotalSize:     3 * domain.MB,
		Sent:          2,
		Failed:        1,
		PartialErrors: []string{"broken.bin: download failed"},
	})

	req.Contains(summary, "✅ Sent Successfully: 2")
	req.Contains(summary, "❌ Failed/Skipped: 1")
}

func TestFailureText_EnumerationFailureIsDistinct(t *testing.T) {
	req := require.New(t)

	text := failureText(fmt.Errorf("%w: listing %q: %v", errors.ErrEnumeration, "pack", io.ErrUnexpectedEOF))
	req.Contains(text, "could not be listed")
}

func TestChatStatusSink_StageResetsProgress(t *testing.T) {
	req := require.New(t)

	var edits []string
	edit := func(_ context.Context, text string) error {
		edits = append(edits, text)
		return nil
	}
	reporter := transfer.NewReporter(slog.Default(), time.Millisecond, time.Now, edit)
	sink := &chatStatusSink{edit: edit, reporter: reporter, now: time.Now, throttle: time.Millisecond}

	// Download leg finishes, then the upload leg of the same file starts
	sink.Progress(context.Background(), 1, "movie.mkv")
	sink.Stage(context.Background(), "Sending to Telegram...")
	sink.Progress(context.Background(), 0.4, "movie.mkv")

	req.Len(edits, 3)
	req.Contains(edits[2], "40%")
}

func TestRelayService_StatusReport(t *testing.T) {
	req := require.New(t)
	chat := newStubChat()
	drive := &stubDrive{info: domain.AccountInfo{
		Connection: "connected",
		SpaceUsed:  domain.GB,
		SpaceTotal: 20 * domain.GB,
	}}
	service := testService(t, chat, drive, 0)

	report := service.StatusReport(context.Background())
	req.Contains(report, "connected")
	req.Contains(report, "1 GB used of 20 GB")
	req.Contains(report, "Queue: 0 waiting")
}
