package models

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slugShape = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*-\d+$`)

func TestSlugBase(t *testing.T) {
	cases := map[string]string{
		"Hello World!":                  "hello-world",
		"  Leading and trailing  ":      "leading-and-trailing",
		"Go 1.22: what's new?":          "go-122-whats-new",
		"multiple   spaces\tand\ttabs":  "multiple-spaces-and-tabs",
		"- dashes - everywhere -":       "dashes-everywhere",
		"Ünïcödé títle":                 "ncd-ttle",
		"!!!":                           "post",
		"":                              "post",
		"Draft: Future of Web Dev":      "draft-future-of-web-dev",
		"UPPER lower 123":               "upper-lower-123",
	}
	for in, want := range cases {
		assert.Equal(t, want, SlugBase(in), "SlugBase(%q)", in)
	}
}

func TestSlug_Shape(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	titles := []string{"Hello World!", "a", "  --x--  ", "???", "Tabs\tand\nnewlines", "Ça va? Très bien."}
	for _, title := range titles {
		s := Slug(title, now)
		assert.Regexp(t, slugShape, s, "title %q", title)
		assert.True(t, strings.HasSuffix(s, "-1700000000123"), s)
	}
}

func TestSlug_CollidingTitlesDifferByTimestamp(t *testing.T) {
	t0 := time.UnixMilli(1700000000000)
	a := Slug("Same Title", t0)
	b := Slug("Same Title", t0.Add(time.Millisecond))
	assert.NotEqual(t, a, b)
	assert.Equal(t, "same-title-1700000000000", a)
}

func TestDeriveExcerpt(t *testing.T) {
	assert.Equal(t, "Body text...", DeriveExcerpt("Body text"))

	long := strings.Repeat("x", 400)
	got := DeriveExcerpt(long)
	assert.Equal(t, strings.Repeat("x", 150)+"...", got)

	multibyte := strings.Repeat("é", 200)
	assert.Equal(t, strings.Repeat("é", 150)+"...", DeriveExcerpt(multibyte))
}

func TestDerivePost_Defaults(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	author := AuthorRef{ID: 1, Username: "admin"}

	p := DerivePost(PostInput{Title: "  Hello World!  ", Content: "Body text"}, author, now)

	assert.Equal(t, "Hello World!", p.Title)
	assert.Equal(t, "hello-world-1700000000000", p.Slug)
	assert.Equal(t, "Body text...", p.Excerpt)
	assert.Equal(t, StatusPublished, p.Status)
	require.NotNil(t, p.Tags)
	assert.Empty(t, p.Tags)
	assert.False(t, p.Featured)
	assert.Zero(t, p.Views)
	assert.Equal(t, author, p.Author)
	assert.Equal(t, now, p.CreatedAt)
	assert.Equal(t, now, p.UpdatedAt)
}

func TestDerivePost_ExplicitFieldsWin(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	in := PostInput{
		Title:    "Draft",
		Content:  "Body",
		Excerpt:  "hand written",
		Status:   StatusDraft,
		Tags:     []string{" go ", "", "web"},
		Featured: true,
	}
	p := DerivePost(in, AuthorRef{ID: 2, Username: "ed"}, now)

	assert.Equal(t, "hand written", p.Excerpt)
	assert.Equal(t, StatusDraft, p.Status)
	assert.Equal(t, []string{"go", "web"}, p.Tags)
	assert.True(t, p.Featured)
}

func TestPostPatch_Empty(t *testing.T) {
	assert.True(t, PostPatch{}.Empty())
	featured := false
	assert.False(t, PostPatch{Featured: &featured}.Empty())
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusDraft.Valid())
	assert.True(t, StatusPublished.Valid())
	assert.False(t, Status("archived").Valid())
	assert.False(t, Status("").Valid())
}
