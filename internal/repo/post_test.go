package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crucial707/inkwell/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postCols = []string{
	"id", "title", "content", "excerpt", "author_id", "author_username", "slug",
	"status", "tags", "featured", "views", "created_at", "updated_at",
}

func newPostRepoMock(t *testing.T) (*PostRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostRepo(db), mock
}

func TestPostRepo_ListPublished(t *testing.T) {
	repo, mock := newPostRepoMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts p WHERE \(p.status = \$1\)`).
		WithArgs("published").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`SELECT p.id, .* FROM posts p JOIN users u ON u.id = p.author_id WHERE \(p.status = \$1\) ORDER BY p.created_at DESC, p.id DESC LIMIT 10 OFFSET 10`).
		WithArgs("published").
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow(3, "Third", "c", "e", 1, "admin", "third-1", "published", "{go,web}", true, 4, now, now).
			AddRow(2, "Second", "c", "e", 1, "admin", "second-1", "published", "{}", false, 0, now, now))

	status := models.StatusPublished
	posts, total, err := repo.List(context.Background(), PostFilter{Status: &status}, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, posts, 2)
	assert.Equal(t, "admin", posts[0].Author.Username)
	assert.Equal(t, []string{"go", "web"}, posts[0].Tags)
	assert.NotNil(t, posts[1].Tags)
	assert.Empty(t, posts[1].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_ListAllStatuses(t *testing.T) {
	repo, mock := newPostRepoMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts p$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM posts p JOIN users u ON u.id = p.author_id ORDER BY`).
		WillReturnRows(sqlmock.NewRows(postCols))

	posts, total, err := repo.List(context.Background(), PostFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_ViewPublished(t *testing.T) {
	repo, mock := newPostRepoMock(t)
	now := time.Now()

	mock.ExpectQuery(`UPDATE posts p SET views = p.views \+ 1 FROM users u WHERE p.slug = \$1 AND p.status = \$2`).
		WithArgs("hello-world-1700000000000", "published").
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow(7, "Hello World", "c", "e", 1, "admin", "hello-world-1700000000000", "published", "{}", false, 6, now, now))

	post, err := repo.ViewPublished(context.Background(), "hello-world-1700000000000")
	require.NoError(t, err)
	assert.Equal(t, 7, post.ID)
	assert.Equal(t, 6, post.Views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_ViewPublished_NotFound(t *testing.T) {
	repo, mock := newPostRepoMock(t)

	mock.ExpectQuery(`UPDATE posts p SET views`).
		WithArgs("draft-slug", "published").
		WillReturnRows(sqlmock.NewRows(postCols))

	_, err := repo.ViewPublished(context.Background(), "draft-slug")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_GetByID(t *testing.T) {
	repo, mock := newPostRepoMock(t)
	now := time.Now()

	mock.ExpectQuery(`FROM posts p JOIN users u ON u.id = p.author_id WHERE p.id = \$1`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow(4, "Draft", "c", "e", 1, "admin", "draft-1", "draft", "{}", false, 0, now, now))

	post, err := repo.GetByID(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, post.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Create(t *testing.T) {
	repo, mock := newPostRepoMock(t)
	now := time.UnixMilli(1700000000000)
	p := models.DerivePost(models.PostInput{Title: "Hello", Content: "body", Tags: []string{"go"}},
		models.AuthorRef{ID: 1, Username: "admin"}, now)

	mock.ExpectQuery(`INSERT INTO posts \(title,content,excerpt,author_id,slug,status,tags,featured,views,created_at,updated_at\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7,\$8,\$9,\$10,\$11\) RETURNING id`).
		WithArgs("Hello", "body", "body...", 1, "hello-1700000000000", "published",
			pq.StringArray{"go"}, false, 0, now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

	created, err := repo.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 10, created.ID)
	assert.Equal(t, "hello-1700000000000", created.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Create_RetriesSlugConflict(t *testing.T) {
	repo, mock := newPostRepoMock(t)
	now := time.UnixMilli(1700000000000)
	p := models.DerivePost(models.PostInput{Title: "Hello", Content: "body"},
		models.AuthorRef{ID: 1, Username: "admin"}, now)

	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnError(&pq.Error{Code: pgUniqueViolation, Constraint: slugConstraint})
	mock.ExpectQuery(`INSERT INTO posts`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "hello-1700000000001",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	created, err := repo.Create(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "hello-1700000000001", created.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Create_OtherConstraintNotRetried(t *testing.T) {
	repo, mock := newPostRepoMock(t)
	p := models.DerivePost(models.PostInput{Title: "Hello"}, models.AuthorRef{ID: 99}, time.Now())

	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "posts_author_id_fkey"})

	_, err := repo.Create(context.Background(), p)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Update(t *testing.T) {
	repo, mock := newPostRepoMock(t)
	now := time.Now()
	repo.now = func() time.Time { return now }

	title := "New title"
	status := models.StatusDraft
	mock.ExpectExec(`UPDATE posts SET title = \$1, status = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs("New title", "draft", now, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`WHERE p.id = \$1`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(postCols).
			AddRow(5, "New title", "c", "e", 1, "admin", "old-title-1", "draft", "{}", false, 3, now, now))

	post, err := repo.Update(context.Background(), 5, models.PostPatch{Title: &title, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "New title", post.Title)
	assert.Equal(t, "old-title-1", post.Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Update_NotFound(t *testing.T) {
	repo, mock := newPostRepoMock(t)
	featured := true

	mock.ExpectExec(`UPDATE posts SET featured = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(true, sqlmock.AnyArg(), 404).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), 404, models.PostPatch{Featured: &featured})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepo_Delete(t *testing.T) {
	repo, mock := newPostRepoMock(t)

	mock.ExpectExec(`DELETE FROM posts WHERE id = \$1`).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM posts WHERE id = \$1`).WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 5))
	assert.ErrorIs(t, repo.Delete(context.Background(), 5), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
