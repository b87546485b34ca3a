package service

import (
	"context"
	"errors"
	"quiz-bot-go/internal/config"
	"quiz-bot-go/pkg/hash"
	"quiz-bot-go/pkg/token"
	"time"

	"github.com/go-redis/redis/v8"
)

// RoleAdmin 是后台管理员的角色名。
const RoleAdmin = "ADMIN"

// ErrInvalidCredentials 表示用户名或密码错误。
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService 接口定义了后台登录相关的业务操作。后台只有一个在配置文件中声明的管理员账号。
type AuthService interface {
	Login(username, password string) (accessToken, refreshToken string, err error)
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	Logout(ctx context.Context, tokenString string) error
	IsRevoked(ctx context.Context, tokenString string) bool
}

type authService struct {
	admin      config.AdminConfig
	jwtManager *token.JWTManager
	rdb        *redis.Client
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(admin config.AdminConfig, jwtManager *token.JWTManager, rdb *redis.Client) AuthService {
	return &authService{admin: admin, jwtManager: jwtManager, rdb: rdb}
}

// Login 校验管理员账号并签发 access token 和 refresh token。
func (s *authService) Login(username, password string) (string, string, error) {
	if s.admin.Username == "" || username != s.admin.Username {
		return "", "", ErrInvalidCredentials
	}
	if !hash.CheckPasswordHash(password, s.admin.PasswordHash) {
		return "", "", ErrInvalidCredentials
	}
	return s.issue(username)
}

// RefreshToken 验证 refresh token 并签发新的 access token 和 refresh token。
func (s *authService) RefreshToken(refreshTokenString string) (string, string, error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil || claims.IsAccessToken() {
		return "", "", errors.New("invalid refresh token")
	}
	if claims.Username != s.admin.Username {
		return "", "", errors.New("user not found")
	}
	return s.issue(claims.Username)
}

func (s *authService) issue(username string) (string, string, error) {
	accessToken, err := s.jwtManager.GenerateToken(username, RoleAdmin)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(username, RoleAdmin)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Logout 将 token 加入 Redis 黑名单，过期时间等于 token 的剩余有效期。
func (s *authService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	expiration := time.Until(claims.ExpiresAt.Time)
	return s.rdb.Set(ctx, "blacklist:"+tokenString, "true", expiration).Err()
}

// IsRevoked 判断 token 是否已被登出。Redis 不可用时视为未登出。
func (s *authService) IsRevoked(ctx context.Context, tokenString string) bool {
	n, err := s.rdb.Exists(ctx, "blacklist:"+tokenString).Result()
	return err == nil && n > 0
}
