package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/engagement-service/config"
	"github.com/d60-Lab/engagement-service/internal/repository"
	"github.com/d60-Lab/engagement-service/pkg/logger"
)

const ActionResendVerification = "resend_verification"

var (
	ErrSignupInvalid    = errors.New("email and action required")
	ErrDomainNotAllowed = errors.New("email domain is not allowed")
	ErrDisposableEmail  = errors.New("disposable email addresses are not allowed")
	ErrEmailRegistered  = errors.New("email already registered and verified")
	ErrTooManySignups   = errors.New("too many signup attempts")
)

// SignupVerdict 注册前邮箱检查结果
type SignupVerdict struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message"`
	Domain  string `json:"domain,omitempty"`
}

// SignupGate 注册邮箱准入：域名白名单、一次性邮箱、重复注册与频率
type SignupGate struct {
	users       repository.UserRepository
	allowed     map[string]struct{}
	disposable  []string
	maxAttempts int64
	window      time.Duration
	now         func() time.Time
}

func NewSignupGate(users repository.UserRepository, cfg config.SignupConfig, opts ...Option) *SignupGate {
	o := buildOptions(opts)
	g := &SignupGate{
		users:       users,
		allowed:     make(map[string]struct{}, len(cfg.AllowedDomains)),
		maxAttempts: int64(cfg.MaxAttempts),
		window:      cfg.AttemptWindow,
		now:         o.now,
	}
	for _, d := range cfg.AllowedDomains {
		g.allowed[strings.ToLower(d)] = struct{}{}
	}
	for _, d := range cfg.DisposableDomains {
		g.disposable = append(g.disposable, strings.ToLower(d))
	}
	return g
}

func (g *SignupGate) Check(ctx context.Context, email, action string) (*SignupVerdict, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || action == "" {
		return nil, ErrSignupInvalid
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return nil, ErrDomainNotAllowed
	}
	domain := email[at+1:]
	if _, ok := g.allowed[domain]; !ok {
		return nil, ErrDomainNotAllowed
	}
	for _, d := range g.disposable {
		if strings.Contains(domain, d) {
			return nil, ErrDisposableEmail
		}
	}

	existing, err := g.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.EmailVerified {
			return nil, ErrEmailRegistered
		}
		if action == ActionResendVerification {
			return &SignupVerdict{Allowed: true, Message: "Verification email can be resent"}, nil
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	// 计数失败不拦截注册
	n, err := g.users.CountByEmailSince(ctx, email, g.now().Add(-g.window))
	if err != nil {
		logger.Warn("signup attempt count failed", zap.Error(err))
		n = 0
	}
	if n >= g.maxAttempts {
		return nil, ErrTooManySignups
	}
	return &SignupVerdict{Allowed: true, Message: "Email verified successfully", Domain: domain}, nil
}
