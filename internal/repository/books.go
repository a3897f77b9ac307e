package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/model"
)

func (r *repository) ListBooks(ctx context.Context) ([]model.BookRow, error) {
	q := `
	select b.id, b.title, b.synopsis, b.published_at, b.cover_url, b.book_type, b.speciality,
	       ba.authors, pb.quantity, vb.file_path
	from books b
	left join (
	    select l.book_id, string_agg(a.name, ', ' order by a.name) as authors
	    from book_authors l
	    join authors a on a.id = l.author_id
	    group by l.book_id
	) ba on ba.book_id = b.id
	left join physical_books pb on pb.book_id = b.id
	left join (
	    select distinct on (book_id) book_id, file_path
	    from virtual_books
	    order by book_id
	) vb on vb.book_id = b.id
	order by b.id
`
	var rows []model.BookRow
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) GetStock(ctx context.Context, bookID int64) (int, error) {
	query, args, err := qb.Select("quantity").
		From(physicalBooksTableName).
		Where(sq.Eq{"book_id": bookID}).
		Limit(1).
		ToSql()
	if err != nil {
		return 0, err
	}
	var quantity int
	if err := r.db.GetContext(ctx, &quantity, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	return quantity, nil
}

func (r *repository) CreateBook(ctx context.Context, in model.BookInput) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	q, args, err := qb.Insert(booksTableName).
		Columns("title", "synopsis", "published_at", "cover_url", "book_type", "speciality").
		Values(in.Title, in.Synopsis, in.PublishedAt, in.CoverURL, in.Type, in.Speciality).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := tx.GetContext(ctx, &id, q, args...); err != nil {
		return 0, err
	}
	if err := r.saveBookDetails(ctx, tx, id, in); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func (r *repository) UpdateBook(ctx context.Context, id int64, in model.BookInput) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	q, args, err := qb.Update(booksTableName).
		Set("title", in.Title).
		Set("synopsis", in.Synopsis).
		Set("published_at", in.PublishedAt).
		Set("cover_url", in.CoverURL).
		Set("book_type", in.Type).
		Set("speciality", in.Speciality).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return errs.ErrNotFound
	}
	if err := r.saveBookDetails(ctx, tx, id, in); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *repository) DeleteBook(ctx context.Context, id int64) error {
	q, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// saveBookDetails rewrites the author links and the per-capability rows
// (stock for physical types, file path for file-backed ones) inside the
// caller's transaction.
func (r *repository) saveBookDetails(ctx context.Context, tx *sqlx.Tx, bookID int64, in model.BookInput) error {
	if _, err := tx.ExecContext(ctx, `delete from book_authors where book_id = $1`, bookID); err != nil {
		return err
	}
	for _, name := range in.Authors {
		var authorID int64
		err := tx.GetContext(ctx, &authorID, `select id from authors where name = $1`, name)
		if errors.Is(err, sql.ErrNoRows) {
			err = tx.GetContext(ctx, &authorID, `insert into authors (name) values ($1) returning id`, name)
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`insert into book_authors (book_id, author_id) values ($1, $2) on conflict do nothing`,
			bookID, authorID); err != nil {
			return err
		}
	}

	if in.Type.IsPhysical() && in.Quantity != nil {
		if _, err := tx.ExecContext(ctx, `
		insert into physical_books (book_id, quantity) values ($1, $2)
		on conflict (book_id) do update set quantity = excluded.quantity
	`, bookID, *in.Quantity); err != nil {
			return err
		}
	} else if _, err := tx.ExecContext(ctx, `delete from physical_books where book_id = $1`, bookID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from virtual_books where book_id = $1`, bookID); err != nil {
		return err
	}
	if in.Type.HasFile() && in.FilePath != nil && *in.FilePath != "" {
		if _, err := tx.ExecContext(ctx,
			`insert into virtual_books (book_id, file_path) values ($1, $2)`,
			bookID, *in.FilePath); err != nil {
			return err
		}
	}
	return nil
}
