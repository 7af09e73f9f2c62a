package transfer

import (
	"bytes"
	"context"
	"io"
	"sync"

	"mega-relay/domain"
)

// fakeNode implements domain.RemoteNode for pipeline tests.
type fakeNode struct {
	id       string
	name     string
	size     int64
	dir      bool
	children []domain.RemoteNode
	childErr error

	content []byte
	openErr error
	// failAfter > 0 makes the stream error after that many bytes.
	failAfter int
	// closeErr makes the stream's Close fail, as integrity checks do.
	closeErr error

	mu    sync.Mutex
	loads int
}

func file(id, name string, content []byte) *fakeNode {
	return &fakeNode{id: id, name: name, size: int64(len(content)), content: content}
}

func folder(id, name string, children ...domain.RemoteNode) *fakeNode {
	return &fakeNode{id: id, name: name, dir: true, children: children}
}

func (n *fakeNode) ID() string   { return n.id }
func (n *fakeNode) Name() string { return n.name }
func (n *fakeNode) Size() int64  { return n.size }
func (n *fakeNode) IsDir() bool  { return n.dir }

func (n *fakeNode) Children(context.Context) ([]domain.RemoteNode, error) {
	n.mu.Lock()
	n.loads++
	n.mu.Unlock()
	if n.childErr != nil {
		return nil, n.childErr
	}
	return n.children, nil
}

func (n *fakeNode) Open(context.Context) (io.ReadCloser, error) {
	if n.openErr != nil {
		return nil, n.openErr
	}
	var r io.Reader = bytes.NewReader(n.content)
	if n.failAfter > 0 {
		r = &brokenReader{data: n.content, failAfter: n.failAfter}
	}
	return &fakeStream{Reader: r, closeErr: n.closeErr}, nil
}

// fakeStream mimics remote streams whose Close performs verification.
type fakeStream struct {
	io.Reader
	closeErr error
}

func (s *fakeStream) Close() error { return s.closeErr }

func (n *fakeNode) loadCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loads
}

type brokenReader struct {
	data      []byte
	failAfter int
	pos       int
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if b.pos >= b.failAfter {
		return 0, io.ErrUnexpectedEOF
	}
	limit := b.failAfter - b.pos
	if limit > len(p) {
		limit = len(p)
	}
	n := copy(p[:limit], b.data[b.pos:])
	b.pos += n
	if n == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	return n, nil
}

// fakeDrive resolves every link to a fixed node.
type fakeDrive struct {
	node       domain.RemoteNode
	resolveErr error
}

func (d *fakeDrive) Resolve(context.Context, domain.RemoteLink) (domain.RemoteNode, error) {
	if d.resolveErr != nil {
		return nil, d.resolveErr
	}
	return d.node, nil
}

func (d *fakeDrive) AccountInfo(context.Context) (domain.AccountInfo, error) {
	return domain.AccountInfo{Connection: "Active"}, nil
}

// fakeChat records delivered uploads and can fail either send path.
type fakeChat struct {
	mu        sync.Mutex
	sent      []domain.FileUpload
	simple    []domain.FileUpload
	streamErr error
	simpleErr error
	// failNames makes both paths fail for specific file names.
	failNames map[string]bool
}

func (c *fakeChat) SendMessage(context.Context, int64, string) (domain.MessageRef, error) {
	return domain.MessageRef{}, nil
}
func (c *fakeChat) EditMessage(context.Context, domain.MessageRef, string) error   { return nil }
func (c *fakeChat) DeleteMessage(context.Context, domain.MessageRef) error         { return nil }
func (c *fakeChat) SelfMember(context.Context, int64) (domain.MemberInfo, error) {
	return domain.MemberInfo{Status: "member", CanSendMessages: true}, nil
}

func (c *fakeChat) SendFile(_ context.Context, upload domain.FileUpload) error {
	if c.failNames[upload.Name] {
		return io.ErrClosedPipe
	}
	if c.streamErr != nil {
		return c.streamErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, upload)
	c.mu.Unlock()
	if upload.Progress != nil {
		upload.Progress(0)
		upload.Progress(1)
	}
	return nil
}

func (c *fakeChat) SendFileSimple(_ context.Context, upload domain.FileUpload) error {
	if c.failNames[upload.Name] {
		return io.ErrClosedPipe
	}
	if c.simpleErr != nil {
		return c.simpleErr
	}
	c.mu.Lock()
	c.simple = append(c.simple, upload)
	c.mu.Unlock()
	return nil
}

func (c *fakeChat) sentNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.sent))
	for _, u := range c.sent {
		names = append(names, u.Name)
	}
	return names
}

// recordingSink captures lifecycle updates for assertions.
type recordingSink struct {
	mu        sync.Mutex
	stages    []string
	fractions []float64
	summaries [][3]int
}

func (s *recordingSink) Stage(_ context.Context, text string) {
	s.mu.Lock()
	s.stages = append(s.stages, text)
	s.mu.Unlock()
}

func (s *recordingSink) Progress(_ context.Context, fraction float64, _ string) {
	s.mu.Lock()
	s.fractions = append(s.fractions, fraction)
	s.mu.Unlock()
}

func (s *recordingSink) Summary(_ context.Context, sent, failed, total int) {
	s.mu.Lock()
	s.summaries = append(s.summaries, [3]int{sent, failed, total})
	s.mu.Unlock()
}
