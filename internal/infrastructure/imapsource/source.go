// Package imapsource turns a mail inbox into a stream of candidate article links.
package imapsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

const (
	defaultServer    = "imap.gmail.com:993"
	defaultMailbox   = "INBOX"
	defaultScanLimit = 50
)

// Config holds the inbox connection parameters.
type Config struct {
	Server    string
	Username  string
	Password  string
	Mailbox   string
	ScanLimit int
}

// Source is the email link connector.
type Source struct {
	cfg    Config
	dial   Dialer
	logger *slog.Logger

	lastScanned atomic.Int64
}

var _ ports.Connector = (*Source)(nil)

// NewSource wires the IMAP dialer. A nil dialer selects DialIMAP.
func NewSource(cfg Config, dial Dialer, logger *slog.Logger) *Source {
	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = defaultMailbox
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = defaultScanLimit
	}
	if dial == nil {
		dial = DialIMAP
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Source{cfg: cfg, dial: dial, logger: logger}
}

// Name implements ports.Connector.
func (s *Source) Name() string { return "email" }

// Source implements ports.Connector.
func (s *Source) Source() domain.Source { return domain.SourceEmail }

// LastScanned reports how many messages the previous FetchLinks examined.
func (s *Source) LastScanned() int { return int(s.lastScanned.Load()) }

// FetchCandidates implements ports.Connector. Filtering against known
// URLs is left to the pipeline.
func (s *Source) FetchCandidates(ctx context.Context, _ domain.URLSet, blocked []string) ([]ports.Candidate, error) {
	links, err := s.FetchLinks(ctx, blocked)
	if err != nil {
		return nil, err
	}
	out := make([]ports.Candidate, 0, len(links))
	for _, link := range links {
		out = append(out, ports.Candidate{URL: link})
	}
	return out, nil
}

// FetchLinks scans the inbox and returns deduplicated article links.
// Malformed messages are skipped; connection failures are returned.
func (s *Source) FetchLinks(ctx context.Context, blocked []string) ([]string, error) {
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return nil, fmt.Errorf("email connector: %w", domain.ErrNotAuthenticated)
	}

	box, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("open mailbox: %w", err)
	}
	defer func() {
		if closeErr := box.Close(); closeErr != nil {
			s.logger.Debug("mailbox logout failed", "error", closeErr)
		}
	}()

	messages, err := box.Fetch(ctx, s.cfg.ScanLimit)
	if err != nil && len(messages) == 0 {
		return nil, fmt.Errorf("fetch mailbox: %w", err)
	}
	if err != nil {
		s.logger.Warn("partial mailbox fetch", "fetched", len(messages), "error", err)
	}
	s.lastScanned.Store(int64(len(messages)))

	seen := domain.NewURLSet()
	var links []string
	for i, raw := range messages {
		body, err := messageText(raw)
		if err != nil {
			s.logger.Debug("skip malformed message", "index", i, "error", err)
			continue
		}
		for _, link := range ExtractLinks(body, blocked) {
			if seen.Add(link) {
				links = append(links, link)
			}
		}
	}

	s.logger.Debug("inbox scanned", "messages", len(messages), "links", len(links))
	return links, nil
}

// messageText concatenates the inline text/plain and text/html parts.
func messageText(raw []byte) (string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("parse message: %w", err)
	}

	var content strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			if content.Len() > 0 {
				break
			}
			return "", fmt.Errorf("read part: %w", err)
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		if contentType != "text/plain" && contentType != "text/html" {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		content.Write(body)
	}
	return content.String(), nil
}
