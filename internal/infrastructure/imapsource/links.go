package imapsource

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ArticleDesk/internal/domain"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'\x60\[\]{}|\\^]+`)

// deniedHosts matches substrings of a link host that never lead to articles.
var deniedHosts = []string{
	"mail.google.com", "calendar.google.com", "bing.com",
	"facebook.com", "twitter.com", "linkedin.com", "instagram.com",
	"calendly.com", "zoom.us", "teams.microsoft.com", "webex.com",
	"accounts.google", "support.google", "youtube.com", "vimeo.com",
	"apollo.io", "outlook.office.com", "w3.org", "bookwithme", "yutori.com",
	"resend-links.com", "chromewebstore.google.com",
	"myaccount.google.com", "lh3.googleusercontent.com",
	"unsubscribe", "preferences", "manage",
}

var deniedKeywords = []string{"unsubscribe", "optout", "manage-preferences", "preferences", "meetingtype"}

var deniedExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".css", ".js", ".ico", ".svg", ".woff", ".ttf"}

var redirectParams = []string{"url", "u", "redirect", "r", "target"}

// ExtractLinks returns candidate article links found in a message body,
// deduplicated by normalized URL in first-seen order.
func ExtractLinks(body string, blocked []string) []string {
	var raw []string

	if looksLikeHTML(body) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
			doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
				if href, ok := sel.Attr("href"); ok {
					raw = append(raw, href)
				}
			})
		}
	}

	for _, match := range urlPattern.FindAllString(body, -1) {
		match = strings.TrimRight(html.UnescapeString(match), `).,;'"`)
		raw = append(raw, match)
	}

	seen := domain.NewURLSet()
	var links []string
	for _, candidate := range raw {
		link := strings.TrimSpace(unwrap(strings.TrimSpace(candidate)))
		if !isArticleLink(link, blocked) {
			continue
		}
		if seen.Add(link) {
			links = append(links, link)
		}
	}
	return links
}

func looksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body") || strings.Contains(lower, "<a href")
}

// unwrap resolves one level of redirector indirection.
func unwrap(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	query := parsed.Query()

	if strings.Contains(strings.ToLower(parsed.Host), "google.") && strings.ToLower(parsed.Path) == "/url" {
		if dest := query.Get("q"); dest != "" {
			return dest
		}
	}
	for _, key := range redirectParams {
		if dest := query.Get(key); dest != "" {
			return dest
		}
	}
	return link
}

func isArticleLink(link string, blocked []string) bool {
	lower := strings.ToLower(link)
	if !strings.HasPrefix(lower, "http") {
		return false
	}

	parsed, err := url.Parse(link)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := strings.ToLower(parsed.Host)

	for _, denied := range deniedHosts {
		if strings.Contains(host, denied) {
			return false
		}
	}
	if domain.DomainBlocked(link, blocked) {
		return false
	}
	for _, keyword := range deniedKeywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}
	for _, ext := range deniedExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return true
}
