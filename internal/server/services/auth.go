// Package services contains server-side business logic. This file implements
// AuthService, which registers users, authenticates logins against a
// cache-backed token lifecycle, validates bearer tokens and forwards
// verification images.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

const (
	defaultOperationTimeout = 5 * time.Second
	defaultUploadTimeout    = 30 * time.Second
)

// TokenCodec signs and parses bearer tokens.
type TokenCodec interface {
	Encode(subject string) (*models.Token, error)
	Decode(bearerHeader string) (*models.Token, error)
}

// ImageUploader hands a verification image to the queue.
type ImageUploader interface {
	UploadImage(ctx context.Context, username string, image []byte) error
}

// AuthServiceConfig bounds the time spent in collaborators.
type AuthServiceConfig struct {
	// OperationTimeout applies to every store and cache call.
	OperationTimeout time.Duration
	// UploadTimeout applies to one verify upload.
	UploadTimeout time.Duration
}

type AuthService struct {
	users    users.Repository
	cache    tokens.Cache
	hasher   cryptox.Hasher
	codec    TokenCodec
	uploader ImageUploader
	logger   logging.Logger
	cfg      AuthServiceConfig
}

func NewAuthService(
	users users.Repository,
	cache tokens.Cache,
	hasher cryptox.Hasher,
	codec TokenCodec,
	uploader ImageUploader,
	logger logging.Logger,
	cfg AuthServiceConfig,
) *AuthService {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = defaultUploadTimeout
	}
	return &AuthService{
		users:    users,
		cache:    cache,
		hasher:   hasher,
		codec:    codec,
		uploader: uploader,
		logger:   logger.With("module", "auth_service"),
		cfg:      cfg,
	}
}

// Register stores a new user and issues its first token. Every failure is
// reported as common.ErrorInternal.
func (s *AuthService) Register(ctx context.Context, creds models.UserCredentials) (*models.Token, error) {
	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %w", common.ErrorInternal, err)
	}

	user, err := s.createUser(ctx, &models.User{UserName: creds.UserName, PasswordHash: hash})
	if err != nil {
		s.logger.Error(ctx, "error creating user", "username", creds.UserName, "error", err)
		return nil, fmt.Errorf("%w: create user: %w", common.ErrorInternal, err)
	}

	token, err := s.issue(ctx, user.UserName)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "username", user.UserName, "user_id", user.ID)
	return token, nil
}

// Authenticate checks credentials, then returns the cached token for the
// presented bearer when it is still live and belongs to the user, or
// issues a fresh one.
func (s *AuthService) Authenticate(ctx context.Context, creds models.UserCredentials, bearerHeader string) (*models.Token, error) {
	user, err := s.getUser(ctx, creds.UserName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Info(ctx, "user not found in db", "username", creds.UserName)
			return nil, fmt.Errorf("%w: %s not found in db", common.ErrorNotFound, creds.UserName)
		}
		s.logger.Error(ctx, "error getting user", "username", creds.UserName, "error", err)
		return nil, fmt.Errorf("%w: get user: %w", common.ErrorInternal, err)
	}

	if !s.hasher.Verify(creds.Password, user.PasswordHash) {
		s.logger.Info(ctx, "failed password verification", "username", creds.UserName)
		return nil, fmt.Errorf("%w: %s failed password verification", common.ErrorUnauthorized, creds.UserName)
	}

	presented, err := s.decode(ctx, bearerHeader)
	if err != nil {
		return nil, err
	}

	cached, err := s.getCached(ctx, presented)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorNotFound):
		s.logger.Info(ctx, "token cache not found for user", "subject", presented.Subject)
	default:
		s.logger.Error(ctx, "error reading token cache", "subject", presented.Subject, "error", err)
		return nil, fmt.Errorf("%w: read cache: %w", common.ErrorInternal, err)
	}

	if cached != nil && !cached.IsExpired() && cached.Subject == user.UserName {
		return cached, nil
	}

	return s.issue(ctx, user.UserName)
}

// CheckToken succeeds when the presented token's subject has a live cached
// token. It never modifies the cache.
func (s *AuthService) CheckToken(ctx context.Context, bearerHeader string) error {
	presented, err := s.decode(ctx, bearerHeader)
	if err != nil {
		return err
	}

	cached, err := s.getCached(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Info(ctx, "token cache not found for user", "subject", presented.Subject)
			return fmt.Errorf("%w: token cache not found for user %s", common.ErrorNotFound, presented.Subject)
		}
		s.logger.Error(ctx, "error reading token cache", "subject", presented.Subject, "error", err)
		return fmt.Errorf("%w: read cache: %w", common.ErrorInternal, err)
	}

	if cached.IsExpired() {
		s.logger.Info(ctx, "token is expired for user", "subject", cached.Subject)
		return fmt.Errorf("%w: token is expired for user %s", common.ErrorUnauthorized, cached.Subject)
	}

	return nil
}

// Verify forwards the image to the queue. Failures are logged, never
// returned.
func (s *AuthService) Verify(ctx context.Context, username string, image []byte) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	if err := s.uploader.UploadImage(ctx, username, image); err != nil {
		s.logger.Error(ctx, "error uploading verification image", "username", username, "error", err)
		return
	}
	s.logger.Info(ctx, "verification image uploaded", "username", username, "size", len(image))
}

func (s *AuthService) decode(ctx context.Context, bearerHeader string) (*models.Token, error) {
	token, err := s.codec.Decode(bearerHeader)
	if err != nil {
		switch {
		case auth.IsBearerNotFound(err):
			s.logger.Info(ctx, "Bearer not found")
		case errors.Is(err, common.ErrorUnprocessable):
			s.logger.Info(ctx, "can't decode token", "error", err)
		default:
			s.logger.Error(ctx, "error decoding token", "error", err)
			return nil, fmt.Errorf("%w: decode token: %w", common.ErrorInternal, err)
		}
		return nil, err
	}
	return token, nil
}

func (s *AuthService) issue(ctx context.Context, subject string) (*models.Token, error) {
	token, err := s.codec.Encode(subject)
	if err != nil {
		s.logger.Error(ctx, "error encoding token", "subject", subject, "error", err)
		return nil, fmt.Errorf("%w: encode token: %w", common.ErrorInternal, err)
	}

	if err := s.putCached(ctx, token); err != nil {
		s.logger.Error(ctx, "error writing token cache", "subject", subject, "error", err)
		return nil, fmt.Errorf("%w: write cache: %w", common.ErrorInternal, err)
	}

	return token, nil
}

func (s *AuthService) createUser(ctx context.Context, user *models.User) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	return s.users.Create(ctx, user)
}

func (s *AuthService) getUser(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	return s.users.GetUserByLogin(ctx, username)
}

func (s *AuthService) getCached(ctx context.Context, token *models.Token) (*models.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	return s.cache.Get(ctx, token)
}

func (s *AuthService) putCached(ctx context.Context, token *models.Token) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()
	return s.cache.Put(ctx, token)
}
