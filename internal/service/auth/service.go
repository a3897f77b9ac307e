package auth

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/model"
	"github.com/biblioteca-utp/portal-service/internal/repository"
	pkgauth "github.com/biblioteca-utp/portal-service/pkg/auth"
)

type RegisterRequest struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	School   *string `json:"school"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Service struct {
	log  *zap.Logger
	repo repository.Users
	cfg  pkgauth.Config
}

func NewService(repo repository.Users, cfg pkgauth.Config, log *zap.Logger) *Service {
	return &Service{
		log:  log.Named("auth"),
		repo: repo,
		cfg:  cfg,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, errors.Wrap(err, "hash password")
	}
	user, err := s.repo.CreateUser(ctx, model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		School:       req.School,
		Role:         pkgauth.RoleStudent,
		Status:       model.UserActivo,
	})
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Login verifies credentials and issues a signed token. Unknown email and
// wrong password collapse into the same rejection.
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, model.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", model.User{}, errs.ErrInvalidCredentials
		}
		return "", model.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return "", model.User{}, errs.ErrInvalidCredentials
	}
	token, err := pkgauth.NewToken(s.cfg, pkgauth.Profile{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
	})
	if err != nil {
		return "", model.User{}, errors.Wrap(err, "issue token")
	}
	return token, user, nil
}
