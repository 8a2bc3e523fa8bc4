package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ArticleDesk/internal/domain"
	"ArticleDesk/internal/ports"
)

type failingMirror struct {
	replaces int
}

func (m *failingMirror) Name() string { return "broken" }

func (m *failingMirror) Load(context.Context) ([]domain.Article, error) {
	return nil, nil
}

func (m *failingMirror) Replace(context.Context, []domain.Article) error {
	m.replaces++
	return errors.New("remote down")
}

type memoryMirror struct {
	records []domain.Article
}

func (m *memoryMirror) Name() string { return "memory" }

func (m *memoryMirror) Load(context.Context) ([]domain.Article, error) {
	return m.records, nil
}

func (m *memoryMirror) Replace(_ context.Context, articles []domain.Article) error {
	m.records = articles
	return nil
}

type countingObserver struct {
	failures map[string]int
}

func (o *countingObserver) MirrorFailed(name string) {
	o.failures[name]++
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	seq := 0
	s, err := Open(t.TempDir(), Options{
		Now: func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestSaveAssignsDefaults(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	saved, err := s.Save(context.Background(), domain.Article{URL: "https://a.com"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if saved.ID != "id-1" || saved.Status != domain.StatusNotStarted || saved.AddedAt.IsZero() {
		t.Fatalf("unexpected defaults: %+v", saved)
	}

	explicit, err := s.Save(context.Background(), domain.Article{ID: "fixed", URL: "https://b.com", Status: domain.StatusInProcess})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if explicit.ID != "fixed" || explicit.Status != domain.StatusInProcess {
		t.Fatalf("explicit fields overwritten: %+v", explicit)
	}
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	saved, err := s.Save(context.Background(), domain.Article{URL: "https://a.com"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.BlockDomain("Spam.example"); err != nil {
		t.Fatalf("BlockDomain: %v", err)
	}

	reopened, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Get(saved.ID)
	if !ok || got.URL != "https://a.com" {
		t.Fatalf("record not persisted: %+v", got)
	}
	if !reopened.Preferences().IsBlocked("spam.example") {
		t.Fatalf("preferences not persisted")
	}
}

func TestOpenRejectsCorruptDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, articlesFile), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(dir, Options{}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestOpenAcceptsZonelessTimestamps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	legacy := `[{"id":"old","url":"https://old.com","status":"Qualified","added_at":"2024-05-01T12:34:56.123456"}]`
	if err := os.WriteFile(filepath.Join(dir, articlesFile), []byte(legacy), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got, ok := s.Get("old")
	if !ok || got.AddedAt.Year() != 2024 || got.AddedAt.Hour() != 12 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestFailedWritesLeaveMemoryUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	saved, err := s.SaveBatch(ctx, []domain.Article{
		{URL: "https://keep.com", Notes: "original"},
		{URL: "https://other.com"},
	})
	if err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove data dir: %v", err)
	}

	if _, err := s.Update(ctx, saved[0].ID, domain.ArticlePatch{Notes: domain.Ptr("changed")}); err == nil {
		t.Fatalf("expected Update to fail")
	}
	if got, _ := s.Get(saved[0].ID); got.Notes != "original" {
		t.Fatalf("Update leaked into memory: %q", got.Notes)
	}

	if _, err := s.HardDelete(ctx, saved[1].ID); err == nil {
		t.Fatalf("expected HardDelete to fail")
	}
	if _, err := s.Purge(ctx, saved[0].ID); err == nil {
		t.Fatalf("expected Purge to fail")
	}
	if err := s.ClearAll(ctx); err == nil {
		t.Fatalf("expected ClearAll to fail")
	}

	all := s.GetAll()
	if len(all) != 2 || all[0].ID != saved[0].ID || all[1].ID != saved[1].ID {
		t.Fatalf("records lost after failed writes: %v", ids(all))
	}
	if s.DeletedURLs().Has("https://keep.com") {
		t.Fatalf("failed purge must not blacklist")
	}
}

func TestUpdateUnknownIDIsNoop(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ok, err := s.Update(context.Background(), "missing", domain.ArticlePatch{Notes: domain.Ptr("x")})
	if err != nil || ok {
		t.Fatalf("expected silent no-op, got ok=%v err=%v", ok, err)
	}
}

func TestMirrorFailuresDoNotBlockWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	observer := &countingObserver{failures: map[string]int{}}
	s.observer = observer
	mirror := &failingMirror{}
	if err := s.Attach(ctx, mirror); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	a, err := s.Save(ctx, domain.Article{URL: "https://a.com"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Update(ctx, a.ID, domain.ArticlePatch{Notes: domain.Ptr("note")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	b, err := s.Save(ctx, domain.Article{URL: "https://b.com"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.HardDelete(ctx, b.ID); err != nil {
		t.Fatalf("HardDelete: %v", err)
	}

	all := s.GetAll()
	if len(all) != 1 || all[0].Notes != "note" {
		t.Fatalf("unexpected records: %+v", all)
	}
	if mirror.replaces == 0 || observer.failures["broken"] != mirror.replaces {
		t.Fatalf("expected every mirror failure observed, replaces=%d observed=%d", mirror.replaces, observer.failures["broken"])
	}
}

func TestDeleteModes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	saved, err := s.SaveBatch(ctx, []domain.Article{
		{URL: "https://soft.com"},
		{URL: "https://hard.com"},
		{URL: "https://purge.com/ "},
	})
	if err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	soft, hard, purge := saved[0], saved[1], saved[2]

	if ok, err := s.SoftDelete(ctx, soft.ID); !ok || err != nil {
		t.Fatalf("SoftDelete: ok=%v err=%v", ok, err)
	}
	if containsID(s.GetActive(), soft.ID) || !containsID(s.GetAll(), soft.ID) {
		t.Fatalf("soft delete must hide from active only")
	}

	if ok, err := s.HardDelete(ctx, hard.ID); !ok || err != nil {
		t.Fatalf("HardDelete: ok=%v err=%v", ok, err)
	}
	if containsID(s.GetActive(), hard.ID) || containsID(s.GetAll(), hard.ID) {
		t.Fatalf("hard delete must remove everywhere")
	}
	if s.DeletedURLs().Has("https://hard.com") {
		t.Fatalf("hard delete must not blacklist")
	}

	if ok, err := s.Purge(ctx, purge.ID); !ok || err != nil {
		t.Fatalf("Purge: ok=%v err=%v", ok, err)
	}
	if containsID(s.GetAll(), purge.ID) {
		t.Fatalf("purge must remove the record")
	}
	if _, listed := s.DeletedURLs()["https://purge.com"]; !listed {
		t.Fatalf("purge must blacklist the normalized url, got %v", s.Preferences().DeletedURLs)
	}
}

func TestClearAllKeepsBlacklist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	a, _ := s.Save(ctx, domain.Article{URL: "https://gone.com"})
	if _, err := s.Purge(ctx, a.ID); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := s.Save(ctx, domain.Article{URL: "https://other.com"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if len(s.GetAll()) != 0 {
		t.Fatalf("expected empty store")
	}
	if !s.DeletedURLs().Has("https://gone.com") {
		t.Fatalf("blacklist must survive ClearAll")
	}
}

func TestAttachMergesByID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	local, err := s.SaveBatch(ctx, []domain.Article{
		{ID: "shared", URL: "https://shared.com", Notes: "local edit"},
		{ID: "local-only", URL: "https://local.com"},
	})
	if err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	mirror := &memoryMirror{records: []domain.Article{
		{ID: "remote-only", URL: "https://remote.com"},
		{ID: "shared", URL: "https://shared.com", Notes: "remote edit"},
	}}
	if err := s.Attach(ctx, mirror); err != nil {
		t.Fatalf("Attach: %v", err)
	}

	all := s.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 merged records, got %d", len(all))
	}
	if all[0].ID != "remote-only" || all[1].ID != "shared" || all[2].ID != local[1].ID {
		t.Fatalf("unexpected merge order: %v", ids(all))
	}
	if all[1].Notes != "remote edit" {
		t.Fatalf("remote must win for shared ids, got %q", all[1].Notes)
	}
	if len(mirror.records) != 3 {
		t.Fatalf("merged set must be pushed back, mirror has %d", len(mirror.records))
	}
}

func TestTimeoutStrikes(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for want := 1; want <= 2; want++ {
		got, err := s.AddTimeoutStrike("https://slow.com/")
		if err != nil || got != want {
			t.Fatalf("strike %d: got %d err %v", want, got, err)
		}
	}
	if err := s.ClearTimeoutStrikes("https://slow.com"); err != nil {
		t.Fatalf("ClearTimeoutStrikes: %v", err)
	}
	if n, _ := s.AddTimeoutStrike("https://slow.com"); n != 1 {
		t.Fatalf("expected reset count, got %d", n)
	}
}

func TestBlockAndUnblockDomain(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if added, err := s.BlockDomain(" Ads.Example "); !added || err != nil {
		t.Fatalf("BlockDomain: added=%v err=%v", added, err)
	}
	if added, _ := s.BlockDomain("ads.example"); added {
		t.Fatalf("expected duplicate block to report false")
	}
	if removed, _ := s.UnblockDomain("ads.example"); !removed {
		t.Fatalf("expected unblock")
	}
	if len(s.Preferences().BlockedDomains) != 0 {
		t.Fatalf("expected empty block list")
	}
}

func TestSavePreferencesNormalizes(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	err := s.SavePreferences(domain.Preferences{
		BlockedDomains: []string{" Ads.COM", "ads.com", ""},
		DeletedURLs:    []string{"https://x.com/", "https://x.com", " "},
	})
	if err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}

	prefs := s.Preferences()
	if prefs.FontSize != domain.DefaultFontSize {
		t.Fatalf("expected default font size, got %d", prefs.FontSize)
	}
	if len(prefs.BlockedDomains) != 1 || prefs.BlockedDomains[0] != "ads.com" {
		t.Fatalf("unexpected domains: %v", prefs.BlockedDomains)
	}
	if len(prefs.DeletedURLs) != 1 || prefs.DeletedURLs[0] != "https://x.com" {
		t.Fatalf("unexpected blacklist: %v", prefs.DeletedURLs)
	}
}

func containsID(articles []domain.Article, id string) bool {
	for _, a := range articles {
		if a.ID == id {
			return true
		}
	}
	return false
}

func ids(articles []domain.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}

func TestMirrorLinkRetriesUntilReachable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s, err := Open(t.TempDir(), Options{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Save(ctx, domain.Article{URL: "https://local.com"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	remote := &memoryMirror{}
	reachable := false
	dials := 0
	link := NewMirrorLink(s, func(context.Context) (ports.Mirror, error) {
		dials++
		if !reachable {
			return nil, errors.New("connection refused")
		}
		return remote, nil
	}, time.Minute)

	if err := link.Ensure(ctx); err == nil {
		t.Fatalf("expected first attempt to fail")
	}
	reachable = true
	if err := link.Ensure(ctx); err != nil || dials != 1 {
		t.Fatalf("retry must wait for the retry period, dials=%d err=%v", dials, err)
	}

	now = now.Add(2 * time.Minute)
	if err := link.Ensure(ctx); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !link.Attached() || len(remote.records) != 1 {
		t.Fatalf("expected local records pushed to the mirror, got %d", len(remote.records))
	}

	if _, err := s.Save(ctx, domain.Article{URL: "https://later.com"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(remote.records) != 2 {
		t.Fatalf("later writes must replicate, mirror has %d", len(remote.records))
	}
	if err := link.Ensure(ctx); err != nil || dials != 2 {
		t.Fatalf("attached link must not dial again, dials=%d", dials)
	}
}
