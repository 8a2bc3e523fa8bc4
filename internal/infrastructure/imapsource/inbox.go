package imapsource

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Mailbox yields raw RFC 5322 messages from one folder.
type Mailbox interface {
	Fetch(ctx context.Context, limit int) ([][]byte, error)
	Close() error
}

// Dialer opens a Mailbox for cfg.
type Dialer func(ctx context.Context, cfg Config) (Mailbox, error)

type imapMailbox struct {
	c    *client.Client
	name string
}

// DialIMAP connects over TLS, logs in and remembers the folder to scan.
func DialIMAP(ctx context.Context, cfg Config) (Mailbox, error) {
	c, err := client.DialTLS(cfg.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Server, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}
	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("login: %w", err)
	}
	return &imapMailbox{c: c, name: cfg.Mailbox}, nil
}

// Fetch returns unread messages, or the newest limit messages when none
// are unread. Fetching BODY[] marks the returned messages as seen.
func (m *imapMailbox) Fetch(ctx context.Context, limit int) ([][]byte, error) {
	status, err := m.c.Select(m.name, false)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", m.name, err)
	}
	if status.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	unseen, err := m.c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	switch {
	case len(unseen) > limit:
		seqset.AddNum(unseen[len(unseen)-limit:]...)
	case len(unseen) > 0:
		seqset.AddNum(unseen...)
	default:
		from := uint32(1)
		if status.Messages > uint32(limit) {
			from = status.Messages - uint32(limit) + 1
		}
		seqset.AddRange(from, status.Messages)
	}

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- m.c.Fetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var out [][]byte
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			continue
		}
		out = append(out, raw)
	}
	if err := <-done; err != nil {
		return out, fmt.Errorf("fetch messages: %w", err)
	}
	return out, nil
}

func (m *imapMailbox) Close() error {
	return m.c.Logout()
}
