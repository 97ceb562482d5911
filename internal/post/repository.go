package post

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines methods for accessing posts from storage.
type Repository interface {
	Create(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id string) (*Post, error)
	// List returns one page of posts visible to viewer and the total number
	// of matching posts.
	List(ctx context.Context, viewer Actor, filter Filter) ([]*Post, int, error)
	Update(ctx context.Context, p *Post) error
	Delete(ctx context.Context, id string) error
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewPgxRepository creates a new Repository implementation using pgxpool.
func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var postColumns = []string{
	"p.id",
	"p.title",
	"p.content",
	"p.summary",
	"p.tags",
	"p.status",
	"p.author_id",
	"u.name",
	"p.ai_generated",
	"p.cover_image_path",
	"p.created_at",
	"p.updated_at",
	"p.published_at",
}

func selectPosts(extra ...string) squirrel.SelectBuilder {
	return psql.Select(append(postColumns, extra...)...).
		From("posts p").
		Join("users u ON u.id = p.author_id")
}

func scanTargets(p *Post) []any {
	return []any{
		&p.ID,
		&p.Title,
		&p.Content,
		&p.Summary,
		&p.Tags,
		&p.Status,
		&p.AuthorID,
		&p.AuthorName,
		&p.AIGenerated,
		&p.CoverImagePath,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.PublishedAt,
	}
}

func (r *pgxRepository) Create(ctx context.Context, p *Post) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}

	query, args, err := psql.Insert("posts").
		Columns("title", "content", "summary", "tags", "status", "author_id", "ai_generated", "published_at").
		Values(p.Title, p.Content, p.Summary, p.Tags, p.Status, p.AuthorID, p.AIGenerated, p.PublishedAt).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create post query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("create post failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	query, args, err := selectPosts().
		Where(squirrel.Eq{"p.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get post query failed: %w", err)
	}

	var p Post
	if err := r.pool.QueryRow(ctx, query, args...).Scan(scanTargets(&p)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post failed: %w", err)
	}
	return &p, nil
}

func (r *pgxRepository) List(ctx context.Context, viewer Actor, filter Filter) ([]*Post, int, error) {
	query := visiblePosts(selectPosts("count(*) OVER() AS total_count"), viewer, filter)

	// Sorting; id breaks ties so pages are stable.
	query = query.OrderBy(orderBy(filter.Sort), "p.id")

	// Pagination
	if filter.Limit < 1 {
		filter.Limit = 10
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	query = query.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list posts query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts failed: %w", err)
	}
	defer rows.Close()

	result := make([]*Post, 0, filter.Limit)
	var total int

	for rows.Next() {
		var p Post
		if err := rows.Scan(append(scanTargets(&p), &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan post failed: %w", err)
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posts failed: %w", err)
	}

	// A page past the end carries no window count.
	if len(result) == 0 && filter.Offset > 0 {
		total, err = r.count(ctx, viewer, filter)
		if err != nil {
			return nil, 0, err
		}
	}

	return result, total, nil
}

func (r *pgxRepository) count(ctx context.Context, viewer Actor, filter Filter) (int, error) {
	query := visiblePosts(
		psql.Select("count(*)").From("posts p").Join("users u ON u.id = p.author_id"),
		viewer, filter,
	)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count posts query failed: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count posts failed: %w", err)
	}
	return total, nil
}

// visiblePosts restricts query to the posts viewer may see that match filter.
func visiblePosts(query squirrel.SelectBuilder, viewer Actor, filter Filter) squirrel.SelectBuilder {
	switch {
	case viewer.Admin:
	case viewer.Anonymous():
		query = query.Where(squirrel.Eq{"p.status": StatusPublished})
	default:
		query = query.Where(squirrel.Or{
			squirrel.Eq{"p.status": StatusPublished},
			squirrel.Eq{"p.author_id": viewer.UserID},
		})
	}

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"p.status": filter.Status})
	}
	if filter.AuthorID != "" {
		query = query.Where(squirrel.Eq{"p.author_id": filter.AuthorID})
	}
	if len(filter.Tags) > 0 {
		query = query.Where("p.tags && ?", filter.Tags)
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"p.title": pattern},
			squirrel.ILike{"p.summary": pattern},
			squirrel.ILike{"p.content": pattern},
		})
	}
	return query
}

func (r *pgxRepository) Update(ctx context.Context, p *Post) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}

	query, args, err := psql.Update("posts").
		Set("title", p.Title).
		Set("content", p.Content).
		Set("summary", p.Summary).
		Set("tags", p.Tags).
		Set("status", p.Status).
		Set("cover_image_path", p.CoverImagePath).
		Set("published_at", p.PublishedAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": p.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build update post query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update post failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete("posts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete post query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete post failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// orderBy turns a public sort key into an ORDER BY term, falling back to
// DefaultSort for unknown keys.
func orderBy(sort string) string {
	key, desc := strings.CutPrefix(sort, "-")
	col, ok := sortColumns[key]
	if !ok {
		key, desc = strings.CutPrefix(DefaultSort, "-")
		col = sortColumns[key]
	}
	if desc {
		return col + " DESC NULLS LAST"
	}
	return col + " ASC NULLS LAST"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
