package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the publication state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

const (
	MaxTitleLen     = 200
	MaxExcerptLen   = 300
	ExcerptRuneLen  = 150
	excerptEllipsis = "..."
	fallbackSlug    = "post"
)

// AuthorRef is the public view of a post's author.
type AuthorRef struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

type Post struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt"`
	Author    AuthorRef `json:"author"`
	Slug      string    `json:"slug"`
	Status    Status    `json:"status"`
	Tags      []string  `json:"tags"`
	Featured  bool      `json:"featured"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostInput holds the caller-supplied fields of a new post.
type PostInput struct {
	Title    string
	Content  string
	Excerpt  string
	Status   Status
	Tags     []string
	Featured bool
}

// PostPatch holds the fields of a partial update. Nil means "leave as is".
type PostPatch struct {
	Title    *string
	Content  *string
	Excerpt  *string
	Status   *Status
	Tags     *[]string
	Featured *bool
}

// Empty reports whether the patch changes nothing.
func (p PostPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Excerpt == nil &&
		p.Status == nil && p.Tags == nil && p.Featured == nil
}

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s]+`)
	whitespace   = regexp.MustCompile(`\s+`)
	hyphens      = regexp.MustCompile(`-+`)
)

// SlugBase lowercases title, strips everything but ASCII letters, digits
// and whitespace, collapses whitespace into single hyphens and trims
// hyphens from both ends.
func SlugBase(title string) string {
	s := strings.ToLower(title)
	s = nonSlugChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	s = hyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallbackSlug
	}
	return s
}

// Slug returns the permalink for a post titled title created at t.
func Slug(title string, t time.Time) string {
	return SlugBase(title) + "-" + strconv.FormatInt(t.UnixMilli(), 10)
}

// DeriveExcerpt returns the first ExcerptRuneLen runes of content
// followed by an ellipsis.
func DeriveExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= ExcerptRuneLen {
		return content + excerptEllipsis
	}
	runes := []rune(content)
	return string(runes[:ExcerptRuneLen]) + excerptEllipsis
}

// NormalizeTags trims every tag and drops the empty ones. The result is
// never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// DerivePost builds the post to persist from in. It fills the defaults
// and the derived fields: slug, excerpt, status, tags and timestamps.
// It performs no I/O.
func DerivePost(in PostInput, author AuthorRef, now time.Time) Post {
	title := strings.TrimSpace(in.Title)

	excerpt := in.Excerpt
	if excerpt == "" && in.Content != "" {
		excerpt = DeriveExcerpt(in.Content)
	}

	status := in.Status
	if status == "" {
		status = StatusPublished
	}

	return Post{
		Title:     title,
		Content:   in.Content,
		Excerpt:   excerpt,
		Author:    author,
		Slug:      Slug(title, now),
		Status:    status,
		Tags:      NormalizeTags(in.Tags),
		Featured:  in.Featured,
		Views:     0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
