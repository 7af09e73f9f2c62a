package megacloud

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	mega "github.com/t3rm1n4l/go-mega"

	"mega-relay/domain"
	"mega-relay/errors"
)

// Client wraps the MEGA SDK behind the remote drive capability.
//
// The SDK exposes no anonymous public-link fetch, so links are resolved
// against the logged-in account's tree by node handle. A link whose node
// is not visible from this account resolves to ErrNotFound.
type Client struct {
	log   *slog.Logger
	m     *mega.Mega
	email string
}

func NewClient(log *slog.Logger, email, password string) (*Client, error) {
	m := mega.New()
	if err := m.Login(email, password); err != nil {
		return nil, fmt.Errorf("mega login failed: %w", err)
	}
	log.Info("Logged in to MEGA", "email", email)
	return &Client{log: log, m: m, email: email}, nil
}

func (c *Client) Resolve(ctx context.Context, link domain.RemoteLink) (domain.RemoteNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	node := c.m.FS.HashLookup(link.Handle)
	if node == nil {
		return nil, fmt.Errorf("%w: handle %s", errors.ErrNotFound, link.Handle)
	}

	isDir := node.GetType() != mega.FILE
	if link.Kind == domain.LinkFolder && !isDir {
		return nil, fmt.Errorf("%w: %s is not a folder", errors.ErrInvalidLink, link.Handle)
	}
	if link.Kind == domain.LinkFile && isDir {
		return nil, fmt.Errorf("%w: %s is not a file", errors.ErrInvalidLink, link.Handle)
	}

	return &remoteNode{m: c.m, node: node}, nil
}

// AccountInfo degrades to a placeholder instead of failing: the /status
// command must answer even when the quota endpoint is flaky.
func (c *Client) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.AccountInfo{}, err
	}

	quota, err := c.m.GetQuota()
	if err != nil {
		c.log.Warn("Quota lookup failed", "error", err)
		return domain.AccountInfo{Email: c.email, Connection: "connected (quota unavailable)"}, nil
	}

	return domain.AccountInfo{
		Email:      c.email,
		SpaceUsed:  int64(quota.Cstrg),
		SpaceTotal: int64(quota.Mstrg),
		Connection: "connected",
	}, nil
}

// remoteNode adapts one SDK node to the transfer pipeline.
type remoteNode struct {
	m    *mega.Mega
	node *mega.Node
}

func (n *remoteNode) ID() string   { return n.node.GetHash() }
func (n *remoteNode) Name() string { return n.node.GetName() }
func (n *remoteNode) Size() int64  { return n.node.GetSize() }
func (n *remoteNode) IsDir() bool  { return n.node.GetType() != mega.FILE }

func (n *remoteNode) Children(ctx context.Context) ([]domain.RemoteNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	children, err := n.m.FS.GetChildren(n.node)
	if err != nil {
		return nil, translate(err)
	}

	nodes := make([]domain.RemoteNode, 0, len(children))
	for _, child := range children {
		nodes = append(nodes, &remoteNode{m: n.m, node: child})
	}
	return nodes, nil
}

// Open starts a chunked download and exposes it as a sequential stream.
func (n *remoteNode) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	download, err := n.m.NewDownload(n.node)
	if err != nil {
		return nil, translate(err)
	}
	return &nodeStream{ctx: ctx, download: download}, nil
}

// nodeStream reads SDK chunks in order. Chunk boundaries are an SDK
// detail, callers see a plain io.ReadCloser.
type nodeStream struct {
	ctx      context.Context
	download *mega.Download
	chunk    int
	buf      []byte
	done     bool
}

func (s *nodeStream) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}

	for len(s.buf) == 0 {
		if s.done || s.chunk >= s.download.Chunks() {
			s.done = true
			return 0, io.EOF
		}

		data, err := s.download.DownloadChunk(s.chunk)
		if err != nil {
			s.done = true
			return 0, translate(err)
		}
		s.chunk++
		s.buf = data
	}

	copied := copy(p, s.buf)
	s.buf = s.buf[copied:]
	return copied, nil
}

// Close finalizes the download. MAC verification happens here, so a
// tampered or mis-keyed file fails on Close, not mid-read.
func (s *nodeStream) Close() error {
	if err := s.download.Finish(); err != nil {
		return translate(err)
	}
	return nil
}

// translate maps SDK failures onto the pipeline sentinels.
func translate(err error) error {
	switch {
	case stderrors.Is(err, mega.ENOENT):
		return fmt.Errorf("%w: %v", errors.ErrNotFound, err)
	case stderrors.Is(err, mega.EKEY), stderrors.Is(err, mega.EMACMISMATCH):
		return fmt.Errorf("%w: %v", errors.ErrDecryption, err)
	default:
		return err
	}
}
