package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"notika/backend/internal/auth/jwt"
	"notika/backend/internal/domain"
	"notika/backend/internal/storage"
)

var (
	// ErrUserInactive 用户已被禁用
	ErrUserInactive = errors.New("user is inactive")
	// ErrNoDestination 账号没有可进入的落地页（既不是管理员也不是普通用户）
	ErrNoDestination = errors.New("account has no login destination")
)

// Service 认证服务
type Service struct {
	users  storage.UserRepository
	tokens *jwt.Manager
	log    *zap.Logger
	now    func() time.Time
}

// NewService 创建认证服务
func NewService(users storage.UserRepository, tokens *jwt.Manager, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		log:    log.Named("auth"),
		now:    time.Now,
	}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	ImageURL string `json:"imageUrl"`
}

// LoginInput 登录输入，Identifier 可以是邮箱或用户名
type LoginInput struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// Result 注册或登录的结果
type Result struct {
	User        *domain.User       `json:"user"`
	Tokens      *jwt.TokenPair     `json:"tokens"`
	Destination domain.Destination `json:"destination"`
}

// Register 注册普通用户并签发令牌
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	email := domain.NormalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)

	if !domain.ValidateEmail(email) {
		return nil, &domain.ValidationError{Field: "email", Reason: domain.ErrInvalidEmail.Error()}
	}
	if err := domain.ValidateUsername(username); err != nil {
		return nil, &domain.ValidationError{Field: "username", Reason: err.Error()}
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, &domain.ValidationError{Field: "password", Reason: err.Error()}
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, domain.ErrUsernameExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(input.Name),
		Surname:      strings.TrimSpace(input.Surname),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		ImageURL:     strings.TrimSpace(input.ImageURL),
		Roles:        domain.Roles{domain.RoleUser},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("email", user.Email))
	return s.issue(user)
}

// Login 邮箱或用户名登录
//
// 账号不存在与密码错误返回同一个错误。没有任何落地页的账号拒绝登录。
func (s *Service) Login(ctx context.Context, input LoginInput) (*Result, error) {
	identifier := strings.TrimSpace(input.Identifier)

	var (
		user *domain.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetUserByEmail(ctx, domain.NormalizeEmail(identifier))
	} else {
		user, err = s.users.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		s.log.Info("login rejected", zap.String("user_id", user.ID), zap.String("reason", "password"))
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if result.Destination == domain.DestinationNone {
		s.log.Warn("login rejected", zap.String("user_id", user.ID), zap.String("reason", "no destination"))
		return nil, ErrNoDestination
	}

	s.log.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.Stringer("destination", result.Destination))
	return result, nil
}

// Refresh 使用刷新令牌换取新的访问令牌
func (s *Service) Refresh(refreshToken string) (string, error) {
	return s.tokens.RefreshAccessToken(refreshToken)
}

// GetUserByID 根据 ID 获取用户
func (s *Service) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *Service) issue(user *domain.User) (*Result, error) {
	pair, err := s.tokens.GenerateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return &Result{
		User:        user,
		Tokens:      pair,
		Destination: domain.ResolveDestination(user.Roles),
	}, nil
}

// HashPassword 哈希密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查密码是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
