package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ArticleDesk/internal/domain"
)

// documents reads and writes the two JSON files that make up local state.
type documents struct {
	dir string
}

func (d documents) ensure() error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := d.createIfMissing(articlesFile, []domain.Article{}); err != nil {
		return err
	}
	return d.createIfMissing(preferencesFile, domain.DefaultPreferences())
}

func (d documents) createIfMissing(name string, initial any) error {
	_, err := os.Stat(filepath.Join(d.dir, name))
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	return d.write(name, initial)
}

func (d documents) loadArticles() ([]domain.Article, error) {
	var articles []domain.Article
	if err := d.read(articlesFile, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (d documents) loadPreferences() (domain.Preferences, error) {
	prefs := domain.DefaultPreferences()
	if err := d.read(preferencesFile, &prefs); err != nil {
		return domain.Preferences{}, err
	}
	if prefs.FontSize == 0 {
		prefs.FontSize = domain.DefaultFontSize
	}
	return prefs, nil
}

func (d documents) saveArticles(articles []domain.Article) error {
	if articles == nil {
		articles = []domain.Article{}
	}
	return d.write(articlesFile, articles)
}

func (d documents) savePreferences(prefs domain.Preferences) error {
	return d.write(preferencesFile, prefs)
}

func (d documents) read(name string, v any) error {
	raw, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// write replaces name atomically via a temp file in the same directory.
func (d documents) write(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(d.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(d.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
