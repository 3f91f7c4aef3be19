package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/hongminglow/kinder-admin/internal/models"
	"github.com/jackc/pgx/v5"
)

var postColumns = []string{"p.id", "p.body", "p.author_id", "u.username", "p.created_at", "p.updated_at"}

func (s *Store) selectPosts() sq.SelectBuilder {
	return s.builder.Select(postColumns...).
		From("posts p").
		Join("users u ON u.id = p.author_id").
		OrderBy("p.created_at DESC", "p.id DESC")
}

// CreatePost inserts a post for post.AuthorID.
func (s *Store) CreatePost(ctx context.Context, post models.Post) (models.Post, error) {
	stmt, args, err := s.builder.Insert("posts").
		Columns("body", "author_id").
		Values(post.Body, post.AuthorID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return models.Post{}, fmt.Errorf("build insert post sql: %w", err)
	}

	var id int64
	if err := s.db.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		return models.Post{}, mapError("insert post", err)
	}
	return s.FindPostByID(ctx, id)
}

// FindPostByID fetches a single post with its author name.
func (s *Store) FindPostByID(ctx context.Context, id int64) (models.Post, error) {
	stmt, args, err := s.selectPosts().Where(sq.Eq{"p.id": id}).ToSql()
	if err != nil {
		return models.Post{}, fmt.Errorf("build find post sql: %w", err)
	}
	post, err := scanPost(s.db.QueryRow(ctx, stmt, args...))
	if err != nil {
		return models.Post{}, mapError("find post", err)
	}
	return post, nil
}

// UpdatePost replaces the body of an existing post.
func (s *Store) UpdatePost(ctx context.Context, post models.Post) (models.Post, error) {
	stmt, args, err := s.builder.Update("posts").
		Set("body", post.Body).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": post.ID}).
		ToSql()
	if err != nil {
		return models.Post{}, fmt.Errorf("build update post sql: %w", err)
	}
	if err := s.execOne(ctx, "update post", stmt, args); err != nil {
		return models.Post{}, err
	}
	return s.FindPostByID(ctx, post.ID)
}

// ListPosts returns one page of posts, newest first, and the total count.
func (s *Store) ListPosts(ctx context.Context, page models.Pagination) ([]models.Post, int, error) {
	countStmt, countArgs, err := s.builder.Select("COUNT(*)").From("posts").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count posts sql: %w", err)
	}
	var total int
	if err := s.db.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, 0, mapError("count posts", err)
	}

	offset := page.Offset()
	if offset < 0 || offset >= total || page.PerPage <= 0 {
		return []models.Post{}, total, nil
	}

	stmt, args, err := s.selectPosts().
		Limit(uint64(page.PerPage)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list posts sql: %w", err)
	}
	posts, err := s.queryPosts(ctx, "list posts", stmt, args)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// ListPostsByAuthor returns every post written by authorID, newest first.
func (s *Store) ListPostsByAuthor(ctx context.Context, authorID int64) ([]models.Post, error) {
	stmt, args, err := s.selectPosts().Where(sq.Eq{"p.author_id": authorID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list author posts sql: %w", err)
	}
	return s.queryPosts(ctx, "list author posts", stmt, args)
}

func (s *Store) queryPosts(ctx context.Context, op, stmt string, args []any) ([]models.Post, error) {
	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return posts, nil
}

func scanPost(row pgx.Row) (models.Post, error) {
	var post models.Post
	if err := row.Scan(&post.ID, &post.Body, &post.AuthorID, &post.Author, &post.CreatedAt, &post.UpdatedAt); err != nil {
		return models.Post{}, err
	}
	return post, nil
}
