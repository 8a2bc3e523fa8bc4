// Package store is the durable article repository. Local JSON documents
// are the durability guarantee; an optional remote mirror receives a
// best-effort copy after every mutation.
package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

const (
	articlesFile    = "articles.json"
	preferencesFile = "preferences.json"

	defaultMirrorTimeout = 15 * time.Second
)

// MirrorObserver is told about swallowed mirror failures.
type MirrorObserver interface {
	MirrorFailed(mirror string)
}

// Options tunes a Store. Zero values pick sensible defaults.
type Options struct {
	Logger        *slog.Logger
	Observer      MirrorObserver
	MirrorTimeout time.Duration
	Now           func() time.Time
	NewID         func() string
}

// Store keeps the article list and preferences in memory, backed by two
// JSON documents in dir.
type Store struct {
	mu       sync.Mutex
	docs     documents
	articles []domain.Article
	prefs    domain.Preferences
	mirror   ports.Mirror

	logger        *slog.Logger
	observer      MirrorObserver
	mirrorTimeout time.Duration
	now           func() time.Time
	newID         func() string
}

var _ ports.ArticleStore = (*Store)(nil)

// Open loads (or initializes) the documents under dir.
func Open(dir string, opts Options) (*Store, error) {
	docs := documents{dir: dir}
	if err := docs.ensure(); err != nil {
		return nil, err
	}

	articles, err := docs.loadArticles()
	if err != nil {
		return nil, err
	}
	prefs, err := docs.loadPreferences()
	if err != nil {
		return nil, err
	}

	s := &Store{
		docs:          docs,
		articles:      articles,
		prefs:         prefs,
		logger:        opts.Logger,
		observer:      opts.Observer,
		mirrorTimeout: opts.MirrorTimeout,
		now:           opts.Now,
		newID:         opts.NewID,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.mirrorTimeout <= 0 {
		s.mirrorTimeout = defaultMirrorTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s, nil
}

// GetAll returns every record, soft-deleted ones included.
func (s *Store) GetAll() []domain.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.articles, nil)
}

// GetActive returns records whose status is not Deleted.
func (s *Store) GetActive() []domain.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.articles, func(a domain.Article) bool { return a.Status.Active() })
}

// Get returns the record with id.
func (s *Store) Get(id string) (domain.Article, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.articles[i].Clone(), true
	}
	return domain.Article{}, false
}

// Save fills in defaults, appends the record and persists.
func (s *Store) Save(ctx context.Context, article domain.Article) (domain.Article, error) {
	saved, err := s.SaveBatch(ctx, []domain.Article{article})
	if err != nil {
		return domain.Article{}, err
	}
	return saved[0], nil
}

// SaveBatch saves several records with a single write.
func (s *Store) SaveBatch(ctx context.Context, articles []domain.Article) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		a = a.Clone()
		if a.ID == "" {
			a.ID = s.newID()
		}
		if a.AddedAt.IsZero() {
			a.AddedAt = domain.At(s.now())
		}
		if a.Status == "" {
			a.Status = domain.StatusNotStarted
		}
		saved = append(saved, a)
	}

	s.articles = append(s.articles, saved...)
	if err := s.persistLocked(ctx); err != nil {
		s.articles = s.articles[:len(s.articles)-len(saved)]
		return nil, err
	}
	return cloneAll(saved, nil), nil
}

// Update merges patch into the record with id. Unknown ids are a no-op
// and report false.
func (s *Store) Update(ctx context.Context, id string, patch domain.ArticlePatch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	prev := s.articles[i].Clone()
	patch.Apply(&s.articles[i])
	if err := s.persistLocked(ctx); err != nil {
		s.articles[i] = prev
		return true, err
	}
	return true, nil
}

// SoftDelete marks the record Deleted; it stays in GetAll.
func (s *Store) SoftDelete(ctx context.Context, id string) (bool, error) {
	return s.Update(ctx, id, domain.ArticlePatch{Status: domain.Ptr(domain.StatusDeleted)})
}

// HardDelete removes the record entirely.
func (s *Store) HardDelete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := slices.Clone(s.articles)
	if _, ok := s.removeLocked(id); !ok {
		return false, nil
	}
	if err := s.persistLocked(ctx); err != nil {
		s.articles = prev
		return true, err
	}
	return true, nil
}

// Purge hard-deletes the record and blacklists its normalized URL so no
// connector ever ingests it again.
func (s *Store) Purge(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevArticles, prevPrefs := slices.Clone(s.articles), s.prefs.Clone()
	removed, ok := s.removeLocked(id)
	if !ok {
		return false, nil
	}
	s.blacklistLocked(removed.URL)
	if err := s.persistLocked(ctx); err != nil {
		s.articles, s.prefs = prevArticles, prevPrefs
		return true, err
	}
	if err := s.docs.savePreferences(s.prefs); err != nil {
		// articles.json already dropped the record; only the blacklist entry is undone.
		s.prefs = prevPrefs
		return true, err
	}
	return true, nil
}

// ClearAll wipes every record. The blacklist is kept.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.articles
	s.articles = nil
	if err := s.persistLocked(ctx); err != nil {
		s.articles = prev
		return err
	}
	return nil
}

// Attach merges the mirror's records into the local set and from then on
// replicates every mutation to it. Records the mirror already has win;
// local-only records are kept and appended.
func (s *Store) Attach(ctx context.Context, mirror ports.Mirror) error {
	if mirror == nil {
		return nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.mirrorTimeout)
	remote, err := mirror.Load(loadCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("load mirror %s: %w", mirror.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.articles
	s.articles = Merge(s.articles, remote)
	s.mirror = mirror
	if err := s.persistLocked(ctx); err != nil {
		s.articles, s.mirror = prev, nil
		return err
	}
	s.logger.Info("mirror attached", "mirror", mirror.Name(), "remote", len(remote), "merged", len(s.articles))
	return nil
}

// Merge combines local and remote records by id. Remote entries are
// authoritative; local entries missing from remote are appended.
func Merge(local, remote []domain.Article) []domain.Article {
	out := make([]domain.Article, 0, len(local)+len(remote))
	seen := make(map[string]bool, len(remote))
	for _, r := range remote {
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	for _, l := range local {
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		out = append(out, l)
	}
	return out
}

// Preferences returns a copy of the settings document.
func (s *Store) Preferences() domain.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Clone()
}

// SavePreferences replaces the settings document. Domains are lower-cased
// and blacklist entries normalized; duplicates and blanks are dropped.
func (s *Store) SavePreferences(prefs domain.Preferences) error {
	next := prefs.Clone()
	if next.FontSize <= 0 {
		next.FontSize = domain.DefaultFontSize
	}

	domains := make([]string, 0, len(next.BlockedDomains))
	for _, d := range next.BlockedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && !slices.Contains(domains, d) {
			domains = append(domains, d)
		}
	}
	next.BlockedDomains = domains

	urls := make([]string, 0, len(next.DeletedURLs))
	seen := domain.NewURLSet()
	for _, u := range next.DeletedURLs {
		if seen.Add(u) {
			urls = append(urls, domain.NormalizeURL(u))
		}
	}
	next.DeletedURLs = urls

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.docs.savePreferences(next); err != nil {
		return err
	}
	s.prefs = next
	return nil
}

// SetFontSize stores the dashboard font size.
func (s *Store) SetFontSize(size int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs.FontSize = size
	return s.docs.savePreferences(s.prefs)
}

// BlockDomain adds domain to the connector block list. It reports false
// when the domain was already blocked.
func (s *Store) BlockDomain(domainName string) (bool, error) {
	d := strings.ToLower(strings.TrimSpace(domainName))
	if d == "" {
		return false, fmt.Errorf("empty domain")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs.IsBlocked(d) {
		return false, nil
	}
	s.prefs.BlockedDomains = append(s.prefs.BlockedDomains, d)
	return true, s.docs.savePreferences(s.prefs)
}

// UnblockDomain removes domain from the block list.
func (s *Store) UnblockDomain(domainName string) (bool, error) {
	d := strings.ToLower(strings.TrimSpace(domainName))

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.prefs.BlockedDomains, d)
	if i < 0 {
		return false, nil
	}
	s.prefs.BlockedDomains = slices.Delete(s.prefs.BlockedDomains, i, i+1)
	return true, s.docs.savePreferences(s.prefs)
}

// Blacklist adds url to the permanent ingestion blacklist.
func (s *Store) Blacklist(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.blacklistLocked(url) {
		return nil
	}
	return s.docs.savePreferences(s.prefs)
}

// DeletedURLs returns the blacklist as a set.
func (s *Store) DeletedURLs() domain.URLSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Blacklist()
}

// AddTimeoutStrike increments and returns the timeout count for url.
func (s *Store) AddTimeoutStrike(url string) (int, error) {
	key := domain.NormalizeURL(url)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs.TimeoutStrikes == nil {
		s.prefs.TimeoutStrikes = map[string]int{}
	}
	s.prefs.TimeoutStrikes[key]++
	return s.prefs.TimeoutStrikes[key], s.docs.savePreferences(s.prefs)
}

// ClearTimeoutStrikes forgets the timeout count for url.
func (s *Store) ClearTimeoutStrikes(url string) error {
	key := domain.NormalizeURL(url)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prefs.TimeoutStrikes[key]; !ok {
		return nil
	}
	delete(s.prefs.TimeoutStrikes, key)
	return s.docs.savePreferences(s.prefs)
}

func (s *Store) blacklistLocked(url string) bool {
	n := domain.NormalizeURL(url)
	if n == "" || slices.Contains(s.prefs.DeletedURLs, n) {
		return false
	}
	s.prefs.DeletedURLs = append(s.prefs.DeletedURLs, n)
	delete(s.prefs.TimeoutStrikes, n)
	return true
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.articles, func(a domain.Article) bool { return a.ID == id })
}

func (s *Store) removeLocked(id string) (domain.Article, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return domain.Article{}, false
	}
	removed := s.articles[i]
	s.articles = slices.Delete(s.articles, i, i+1)
	return removed, true
}

// persistLocked writes the local document and then replicates to the
// mirror. Only the local write can fail the call.
func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.docs.saveArticles(s.articles); err != nil {
		return err
	}
	if s.mirror == nil {
		return nil
	}

	mirrorCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mirrorTimeout)
	defer cancel()
	if err := s.mirror.Replace(mirrorCtx, cloneAll(s.articles, nil)); err != nil {
		s.logger.Warn("mirror write failed", "mirror", s.mirror.Name(), "error", err)
		if s.observer != nil {
			s.observer.MirrorFailed(s.mirror.Name())
		}
	}
	return nil
}

func cloneAll(in []domain.Article, keep func(domain.Article) bool) []domain.Article {
	out := make([]domain.Article, 0, len(in))
	for _, a := range in {
		if keep != nil && !keep(a) {
			continue
		}
		out = append(out, a.Clone())
	}
	return out
}
