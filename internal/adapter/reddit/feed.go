package reddit

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	stdhtml "html"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/fairyhunter13/pain-radar/internal/domain"
)

// postIDRe matches the post id segment of a Reddit permalink.
var postIDRe = regexp.MustCompile(`/comments/([a-z0-9]+)/`)

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Content   string `xml:"content"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	Links     []struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
}

func (e atomEntry) link() string {
	if len(e.Links) == 0 {
		return ""
	}
	return e.Links[0].Href
}

// extractPostID pulls the post id out of a permalink, or "" when absent.
func extractPostID(link string) string {
	m := postIDRe.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

// cleanHTML decodes entities, strips tags with a tolerant parser, and
// collapses whitespace.
func cleanHTML(text string) string {
	text = stdhtml.UnescapeString(text)
	var sb strings.Builder
	tok := html.NewTokenizer(strings.NewReader(text))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			sb.WriteString(string(tok.Text()))
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// parseFeed decodes an Atom feed into posts. Entries whose permalink has
// no post id are skipped. Score and comment counts are not carried by RSS
// and stay zero.
func parseFeed(data []byte, subreddit string) ([]domain.Post, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("op=reddit.parseFeed: %w", err)
	}
	posts := make([]domain.Post, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		link := entry.link()
		id := extractPostID(link)
		if id == "" {
			continue
		}
		var createdUTC int64
		ts := entry.Published
		if ts == "" {
			ts = entry.Updated
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			createdUTC = t.Unix()
		}
		posts = append(posts, domain.Post{
			ID:         id,
			Subreddit:  subreddit,
			Title:      entry.Title,
			Body:       cleanHTML(entry.Content),
			CreatedUTC: createdUTC,
			URL:        link,
			Permalink:  link,
		})
	}
	return posts, nil
}

type commentChild struct {
	Kind string `json:"kind"`
	Data struct {
		Body string `json:"body"`
	} `json:"data"`
}

// parseCommentBodies extracts the filtered comment stream from a post's
// JSON page: kind t1 only, missing and [deleted]/[removed] bodies skipped,
// same HTML cleaning as the listing parser.
func parseCommentBodies(data []byte) ([]string, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("op=reddit.parseCommentBodies: %w", err)
	}
	if len(envelope) < 2 {
		return nil, nil
	}
	var listing struct {
		Data struct {
			Children []commentChild `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(envelope[1], &listing); err != nil {
		return nil, fmt.Errorf("op=reddit.parseCommentBodies: %w", err)
	}
	var comments []string
	for _, child := range listing.Data.Children {
		if child.Kind != "t1" {
			continue
		}
		body := child.Data.Body
		if body == "" || body == "[deleted]" || body == "[removed]" {
			continue
		}
		if cleaned := cleanHTML(body); cleaned != "" {
			comments = append(comments, cleaned)
		}
	}
	return comments, nil
}
