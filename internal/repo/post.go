package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/crucial707/inkwell/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/crucial707/inkwell/internal/repo"

	// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
	pgUniqueViolation = "23505"
	slugConstraint    = "posts_slug_key"
	maxSlugAttempts   = 3
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// postColumns are the columns of a post joined with its author's username.
var postColumns = []string{
	"p.id", "p.title", "p.content", "p.excerpt", "p.author_id",
	"u.username AS author_username", "p.slug", "p.status", "p.tags",
	"p.featured", "p.views", "p.created_at", "p.updated_at",
}

type postRow struct {
	ID             int            `db:"id"`
	Title          string         `db:"title"`
	Content        string         `db:"content"`
	Excerpt        string         `db:"excerpt"`
	AuthorID       int            `db:"author_id"`
	AuthorUsername string         `db:"author_username"`
	Slug           string         `db:"slug"`
	Status         string         `db:"status"`
	Tags           pq.StringArray `db:"tags"`
	Featured       bool           `db:"featured"`
	Views          int            `db:"views"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r postRow) toModel() models.Post {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return models.Post{
		ID:        r.ID,
		Title:     r.Title,
		Content:   r.Content,
		Excerpt:   r.Excerpt,
		Author:    models.AuthorRef{ID: r.AuthorID, Username: r.AuthorUsername},
		Slug:      r.Slug,
		Status:    models.Status(r.Status),
		Tags:      tags,
		Featured:  r.Featured,
		Views:     r.Views,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// PostFilter narrows a post listing. A nil Status lists every status.
type PostFilter struct {
	Status *models.Status
}

// PostRepo persists posts. Every method runs inside a trace span.
type PostRepo struct {
	DB     *sqlx.DB
	tracer trace.Tracer
	now    func() time.Time
}

func NewPostRepo(db *sql.DB) *PostRepo {
	return &PostRepo{
		DB:     sqlx.NewDb(db, "postgres"),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
}

func (r *PostRepo) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "PostRepo."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func selectPosts() sq.SelectBuilder {
	return psql.Select(postColumns...).
		From("posts p").
		Join("users u ON u.id = p.author_id")
}

// List returns one page of posts matching f, newest first, and the total
// number of matching posts.
func (r *PostRepo) List(ctx context.Context, f PostFilter, limit, offset int) (posts []models.Post, total int, err error) {
	ctx, span := r.startSpan(ctx, "List", attribute.Int("limit", limit), attribute.Int("offset", offset))
	defer func() { endSpan(span, err) }()

	where := sq.And{}
	if f.Status != nil {
		where = append(where, sq.Eq{"p.status": string(*f.Status)})
	}

	countQ := psql.Select("COUNT(*)").From("posts p")
	listQ := selectPosts().
		OrderBy("p.created_at DESC", "p.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if len(where) > 0 {
		countQ = countQ.Where(where)
		listQ = listQ.Where(where)
	}

	query, args, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	if err = r.DB.GetContext(ctx, &total, query, args...); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query, args, err = listQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list: %w", err)
	}
	var rows []postRow
	if err = r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	posts = make([]models.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.toModel())
	}
	return posts, total, nil
}

// GetByID returns a post of any status. It never touches the view counter.
func (r *PostRepo) GetByID(ctx context.Context, id int) (post *models.Post, err error) {
	ctx, span := r.startSpan(ctx, "GetByID", attribute.Int("post.id", id))
	defer func() { endSpan(span, err) }()

	query, args, err := selectPosts().Where(sq.Eq{"p.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var row postRow
	if err = r.DB.GetContext(ctx, &row, query, args...); err != nil {
		return nil, err
	}
	p := row.toModel()
	return &p, nil
}

// ViewPublished returns the published post with the given slug after
// incrementing its view counter. The increment and the read are one
// statement. Returns sql.ErrNoRows when no published post has that slug.
func (r *PostRepo) ViewPublished(ctx context.Context, slug string) (post *models.Post, err error) {
	ctx, span := r.startSpan(ctx, "ViewPublished", attribute.String("post.slug", slug))
	defer func() { endSpan(span, err) }()

	query := `
		UPDATE posts p
		SET views = p.views + 1
		FROM users u
		WHERE p.slug = $1 AND p.status = $2 AND u.id = p.author_id
		RETURNING p.id, p.title, p.content, p.excerpt, p.author_id,
			u.username AS author_username, p.slug, p.status, p.tags,
			p.featured, p.views, p.created_at, p.updated_at
	`
	var row postRow
	if err = r.DB.GetContext(ctx, &row, query, slug, string(models.StatusPublished)); err != nil {
		return nil, err
	}
	p := row.toModel()
	return &p, nil
}

// Create inserts p and returns it with its id. When the slug collides
// with an existing one the timestamp suffix is moved forward one
// millisecond and the insert retried.
func (r *PostRepo) Create(ctx context.Context, p models.Post) (created models.Post, err error) {
	ctx, span := r.startSpan(ctx, "Create", attribute.String("post.slug", p.Slug))
	defer func() { endSpan(span, err) }()

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		if attempt > 0 {
			p.Slug = models.Slug(p.Title, p.CreatedAt.Add(time.Duration(attempt)*time.Millisecond))
		}

		query, args, buildErr := psql.Insert("posts").
			Columns("title", "content", "excerpt", "author_id", "slug", "status",
				"tags", "featured", "views", "created_at", "updated_at").
			Values(p.Title, p.Content, p.Excerpt, p.Author.ID, p.Slug, string(p.Status),
				pq.StringArray(p.Tags), p.Featured, p.Views, p.CreatedAt, p.UpdatedAt).
			Suffix("RETURNING id").
			ToSql()
		if buildErr != nil {
			return models.Post{}, buildErr
		}

		err = r.DB.QueryRowxContext(ctx, query, args...).Scan(&p.ID)
		if err == nil {
			return p, nil
		}
		if !isSlugConflict(err) {
			return models.Post{}, err
		}
	}
	return models.Post{}, err
}

func isSlugConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation && pqErr.Constraint == slugConstraint
}

// Update applies the non-nil fields of patch to post id and returns the
// stored result. The slug is never changed here. Returns sql.ErrNoRows for
// an unknown id.
func (r *PostRepo) Update(ctx context.Context, id int, patch models.PostPatch) (post *models.Post, err error) {
	ctx, span := r.startSpan(ctx, "Update", attribute.Int("post.id", id))
	defer func() { endSpan(span, err) }()

	q := psql.Update("posts")
	if patch.Title != nil {
		q = q.Set("title", *patch.Title)
	}
	if patch.Content != nil {
		q = q.Set("content", *patch.Content)
	}
	if patch.Excerpt != nil {
		q = q.Set("excerpt", *patch.Excerpt)
	}
	if patch.Status != nil {
		q = q.Set("status", string(*patch.Status))
	}
	if patch.Tags != nil {
		q = q.Set("tags", pq.StringArray(*patch.Tags))
	}
	if patch.Featured != nil {
		q = q.Set("featured", *patch.Featured)
	}
	q = q.Set("updated_at", r.now()).Where(sq.Eq{"id": id})

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, sql.ErrNoRows
	}
	return r.GetByID(ctx, id)
}

// Delete permanently removes post id. Returns sql.ErrNoRows for an
// unknown id.
func (r *PostRepo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := r.startSpan(ctx, "Delete", attribute.Int("post.id", id))
	defer func() { endSpan(span, err) }()

	res, err := r.DB.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteAll removes every post and reports how many were removed.
func (r *PostRepo) DeleteAll(ctx context.Context) (n int64, err error) {
	ctx, span := r.startSpan(ctx, "DeleteAll")
	defer func() { endSpan(span, err) }()

	res, err := r.DB.ExecContext(ctx, `DELETE FROM posts`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
