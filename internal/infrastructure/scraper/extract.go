package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"ArticleDesk/internal/domain"
)

const (
	minContentChars = 200
	minParagraph    = 20
)

var spaces = regexp.MustCompile(`\s+`)

// extract picks the main text of a page: readability first, then the
// paragraphs of an article/main container, then every paragraph.
func extract(body []byte, pageURL string) (domain.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.Page{}, fmt.Errorf("parse page: %w", err)
	}
	page := domain.Page{Title: clean(doc.Find("title").First().Text())}

	candidates := make([]string, 0, 3)
	if title, text, ok := readable(body, pageURL); ok {
		if title != "" {
			page.Title = title
		}
		candidates = append(candidates, text)
	}
	candidates = append(candidates, containerParagraphs(doc), allParagraphs(doc))

	best := ""
	for _, text := range candidates {
		if len(text) >= minContentChars {
			page.Text = text
			return page, nil
		}
		if len(text) > len(best) {
			best = text
		}
	}
	if best == "" {
		return domain.Page{}, domain.ErrContentTooShort
	}
	page.Text = best
	return page, nil
}

func readable(body []byte, pageURL string) (string, string, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", false
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return "", "", false
	}
	content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", "", false
	}
	return clean(article.Title), blockText(content.Selection), true
}

func containerParagraphs(doc *goquery.Document) string {
	container := doc.Find("article").First()
	if container.Length() == 0 {
		container = doc.Find("main").First()
	}
	if container.Length() == 0 {
		container = doc.Find("body")
	}

	var parts []string
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := clean(p.Text()); len(text) > minParagraph {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

func allParagraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := clean(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

// blockText joins block-level elements with blank lines so words from
// neighbouring paragraphs do not run together.
func blockText(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p, li, h1, h2, h3, h4, h5, h6, blockquote, pre").Each(func(_ int, block *goquery.Selection) {
		if block.ParentsFiltered("p, li, blockquote").Length() > 0 {
			return
		}
		if text := clean(block.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return clean(sel.Text())
	}
	return strings.Join(parts, "\n\n")
}

func clean(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
