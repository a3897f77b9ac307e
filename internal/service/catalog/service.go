package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/model"
	"github.com/biblioteca-utp/portal-service/internal/repository"
)

const unknownAuthor = "Desconocido"

type Service struct {
	log            *zap.Logger
	repo           repository.Books
	storageBaseURL string
}

func NewService(repo repository.Books, storageBaseURL string, log *zap.Logger) *Service {
	return &Service{
		log:            log.Named("catalog"),
		repo:           repo,
		storageBaseURL: strings.TrimSuffix(storageBaseURL, "/"),
	}
}

// FetchBooks reads the joined catalog rows and normalizes them. A store
// failure surfaces as ErrCatalogUnavailable, never as an empty list.
func (s *Service) FetchBooks(ctx context.Context) ([]model.PreparedBook, error) {
	rows, err := s.repo.ListBooks(ctx)
	if err != nil {
		s.log.Error("ListBooks", zap.Error(err))
		return nil, errors.Wrapf(errs.ErrCatalogUnavailable, "list books: %v", err)
	}
	books := make([]model.PreparedBook, 0, len(rows))
	for _, row := range rows {
		books = append(books, s.prepare(row))
	}
	return books, nil
}

func (s *Service) prepare(row model.BookRow) model.PreparedBook {
	bookType := model.NormalizeBookType(row.BookType)

	authors := unknownAuthor
	if row.Authors != nil && *row.Authors != "" {
		authors = *row.Authors
	}
	author := authors
	if i := strings.Index(authors, ","); i >= 0 {
		author = strings.TrimSpace(authors[:i])
	}

	book := model.PreparedBook{
		ID:          row.ID,
		Title:       row.Title,
		Slug:        slugify(row.Title),
		Author:      author,
		Authors:     authors,
		PublishedAt: row.PublishedAt,
		Type:        bookType,
	}
	if row.Synopsis != nil {
		book.Synopsis = *row.Synopsis
	}
	if row.CoverURL != nil {
		book.CoverURL = *row.CoverURL
	}
	if row.Speciality != nil {
		book.Speciality = *row.Speciality
	}
	if bookType.HasFile() && row.FilePath != nil && *row.FilePath != "" {
		book.FileURL = s.resolveFileURL(*row.FilePath)
	}
	if bookType.IsPhysical() && row.Quantity != nil {
		quantity := *row.Quantity
		book.AvailableCount = &quantity
	}
	return book
}

// resolveFileURL passes absolute URLs through and expands storage-relative
// paths against the public base.
func (s *Service) resolveFileURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return s.storageBaseURL + "/" + strings.TrimPrefix(raw, "/")
}

func slugify(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "-")
}

type SaveBookRequest struct {
	Title       string     `json:"title" validate:"required"`
	Synopsis    *string    `json:"synopsis"`
	PublishedAt *time.Time `json:"publishedAt"`
	CoverURL    *string    `json:"coverUrl"`
	Type        string     `json:"type" validate:"required"`
	Speciality  *string    `json:"speciality"`
	Authors     []string   `json:"authors"`
	Quantity    *int       `json:"quantity" validate:"omitempty,gte=0"`
	FilePath    *string    `json:"filePath"`
}

func (s *Service) CreateBook(ctx context.Context, req SaveBookRequest) (int64, error) {
	id, err := s.repo.CreateBook(ctx, bookInput(req))
	if err != nil {
		return 0, errors.Wrap(err, "create book")
	}
	s.log.Info("book created", zap.Int64("book_id", id), zap.String("title", req.Title))
	return id, nil
}

func (s *Service) UpdateBook(ctx context.Context, id int64, req SaveBookRequest) error {
	return s.repo.UpdateBook(ctx, id, bookInput(req))
}

func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	if err := s.repo.DeleteBook(ctx, id); err != nil {
		return err
	}
	s.log.Info("book deleted", zap.Int64("book_id", id))
	return nil
}

// bookInput folds the raw type and keeps the stock/file fields only for the
// capabilities that type carries.
func bookInput(req SaveBookRequest) model.BookInput {
	bookType := model.NormalizeBookType(req.Type)
	in := model.BookInput{
		Title:       strings.TrimSpace(req.Title),
		Synopsis:    req.Synopsis,
		PublishedAt: req.PublishedAt,
		CoverURL:    req.CoverURL,
		Type:        bookType,
		Speciality:  req.Speciality,
		Authors:     req.Authors,
	}
	if bookType.IsPhysical() {
		in.Quantity = req.Quantity
	}
	if bookType.HasFile() {
		in.FilePath = req.FilePath
	}
	return in
}
