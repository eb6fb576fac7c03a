package service

import (
	"context"
	"errors"
	"strings"

	"github.com/LsSens/backend-ecommerce/internal/apperr"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/domain"
	"github.com/LsSens/backend-ecommerce/internal/repository"

	"go.uber.org/zap"
)

// UserService 用户、登录与购物车服务接口
type UserService interface {
	// 公开（租户内）
	Register(ctx context.Context, tenantID string, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, tenantID string, req LoginRequest) (*LoginResponse, error)

	// Authenticate verifies a bearer token and reloads its user inside tenantID.
	Authenticate(ctx context.Context, tenantID, token string) (auth.RequestContext, error)

	ListUsers(ctx context.Context, rc auth.RequestContext) ([]*domain.User, error)
	GetUser(ctx context.Context, rc auth.RequestContext, userID string) (*domain.User, error)
	UpdateUser(ctx context.Context, rc auth.RequestContext, userID string, req UpdateUserRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, rc auth.RequestContext, userID string) error

	// 购物车（本人或 Admin）
	GetCart(ctx context.Context, rc auth.RequestContext, userID string) ([]domain.CartLine, error)
	AddToCart(ctx context.Context, rc auth.RequestContext, userID string, req CartItemRequest) ([]domain.CartLine, error)
	UpdateCartItem(ctx context.Context, rc auth.RequestContext, userID string, req CartItemRequest) ([]domain.CartLine, error)
	RemoveFromCart(ctx context.Context, rc auth.RequestContext, userID, productID string) ([]domain.CartLine, error)
}

// SessionTokens issues and verifies bearer tokens (auth.TokenIssuer).
type SessionTokens interface {
	Issue(u *domain.User) (string, error)
	Verify(token string) (*auth.Claims, error)
}

type userService struct {
	users  repository.UsersRepository
	tokens SessionTokens
	hasher auth.PasswordHasher
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(users repository.UsersRepository, tokens SessionTokens, hasher auth.PasswordHasher, logger *zap.Logger) UserService {
	return &userService{users: users, tokens: tokens, hasher: hasher, logger: logger}
}

// RegisterRequest 注册请求；role 字段被忽略，公开注册总是 Customer
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	CPF      string `json:"cpf,omitempty" validate:"omitempty,max=20"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Address  string `json:"address,omitempty" validate:"omitempty,max=300"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`

	IPAddress string `json:"-"` // 客户端 IP（用于日志）
	UserAgent string `json:"-"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// UpdateUserRequest 部分更新；缺省字段保持不变
type UpdateUserRequest struct {
	Name     *string      `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Email    *string      `json:"email,omitempty" validate:"omitempty,email"`
	Password *string      `json:"password,omitempty" validate:"omitempty,min=6"`
	Role     *domain.Role `json:"role,omitempty" validate:"omitempty,oneof=Admin Operator Customer"`
	CPF      *string      `json:"cpf,omitempty" validate:"omitempty,max=20"`
	Phone    *string      `json:"phone,omitempty" validate:"omitempty,max=20"`
	Address  *string      `json:"address,omitempty" validate:"omitempty,max=300"`
}

// CartItemRequest 购物车条目
type CartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, tenantID string, req RegisterRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)
	req.CPF = strings.TrimSpace(req.CPF)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperr.Internal("service.Register", err)
	}
	user, err := s.users.CreateUser(ctx, tenantID, &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		TaxID:        req.CPF,
		Phone:        req.Phone,
		Address:      req.Address,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("User registered",
		zap.String("tenant_id", tenantID),
		zap.String("user_id", user.ID),
	)
	return user, nil
}

var errInvalidCredential = apperr.Unauthorized(apperr.ReasonInvalidCredential, "invalid email or password")

func (s *userService) Login(ctx context.Context, tenantID string, req LoginRequest) (*LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, tenantID, req.Email)
	if err != nil {
		if apperr.Is(err, apperr.ENotFound) {
			s.logger.Warn("User login failed: invalid credentials",
				zap.String("tenant_id", tenantID),
				zap.String("ip_address", req.IPAddress),
				zap.String("user_agent", req.UserAgent),
				zap.String("reason", "user not found"),
			)
			return nil, errInvalidCredential
		}
		return nil, err
	}
	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		s.logger.Warn("User login failed: invalid credentials",
			zap.String("tenant_id", tenantID),
			zap.String("user_id", user.ID),
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
			zap.String("reason", "password mismatch"),
		)
		return nil, errInvalidCredential
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperr.Internal("service.Login", err)
	}
	s.logger.Info("User login successful",
		zap.String("tenant_id", tenantID),
		zap.String("user_id", user.ID),
		zap.String("ip_address", req.IPAddress),
	)
	return &LoginResponse{User: user, Token: token}, nil
}

func (s *userService) Authenticate(ctx context.Context, tenantID, token string) (auth.RequestContext, error) {
	if token == "" {
		return auth.RequestContext{}, apperr.Unauthorized(apperr.ReasonMissingToken, "access token required")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return auth.RequestContext{}, apperr.Unauthorized(apperr.ReasonExpiredToken, "token expired")
		}
		return auth.RequestContext{}, apperr.Unauthorized(apperr.ReasonInvalidToken, "invalid token")
	}
	if claims.CompanyID != tenantID {
		return auth.RequestContext{}, apperr.Forbidden(apperr.ReasonTenantMismatch, "token does not belong to this domain")
	}
	user, err := s.users.GetUser(ctx, tenantID, claims.ID)
	if err != nil {
		if apperr.Is(err, apperr.ENotFound) {
			return auth.RequestContext{}, apperr.Unauthorized(apperr.ReasonUserNotFound, "user not found")
		}
		return auth.RequestContext{}, err
	}
	return auth.NewRequestContext(tenantID, user.ID, user.Role), nil
}

func (s *userService) ListUsers(ctx context.Context, rc auth.RequestContext) ([]*domain.User, error) {
	return s.users.ListUsers(ctx, rc.TenantID())
}

func (s *userService) GetUser(ctx context.Context, rc auth.RequestContext, userID string) (*domain.User, error) {
	return s.users.GetUser(ctx, rc.TenantID(), userID)
}

// UpdateUser: Operator 以上或本人；本人不能修改自己的角色，修改角色需不低于目标用户与新角色的等级
func (s *userService) UpdateUser(ctx context.Context, rc auth.RequestContext, userID string, req UpdateUserRequest) (*domain.User, error) {
	self := rc.UserID() == userID
	if !self {
		if err := auth.RequireRole(&rc, domain.RoleOperator); err != nil {
			return nil, err
		}
	}
	req.Name = trimmed(req.Name)
	req.CPF = trimmed(req.CPF)
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		req.Email = &email
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	target, err := s.users.GetUser(ctx, rc.TenantID(), userID)
	if err != nil {
		return nil, err
	}
	if !self && auth.Rank(rc.Role()) < auth.Rank(target.Role) {
		return nil, apperr.Forbidden(apperr.ReasonInsufficientRole, "cannot modify a user with a higher role")
	}

	patch := domain.UserPatch{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		TaxID:   req.CPF,
	}
	if req.Role != nil && *req.Role != target.Role {
		if self {
			return nil, apperr.Forbidden(apperr.ReasonInsufficientRole, "you cannot change your own role")
		}
		if auth.Rank(rc.Role()) < auth.Rank(*req.Role) {
			return nil, apperr.Forbidden(apperr.ReasonInsufficientRole, "insufficient permissions",
				apperr.Detail{Field: "role", Code: "requiredRole", Message: "required role", Value: req.Role.String()},
				apperr.Detail{Field: "role", Code: "userRole", Message: "user role", Value: rc.Role().String()},
			)
		}
		patch.Role = req.Role
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, apperr.Internal("service.UpdateUser", err)
		}
		patch.PasswordHash = &hash
	}
	if patch.Empty() {
		return target, nil
	}
	return s.users.UpdateUser(ctx, rc.TenantID(), userID, patch)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (s *userService) DeleteUser(ctx context.Context, rc auth.RequestContext, userID string) error {
	if err := s.users.DeleteUser(ctx, rc.TenantID(), userID); err != nil {
		return err
	}
	s.logger.Info("User deleted",
		zap.String("tenant_id", rc.TenantID()),
		zap.String("user_id", userID),
		zap.String("deleted_by", rc.UserID()),
	)
	return nil
}

func (s *userService) cartOwner(rc auth.RequestContext, userID string) error {
	if !rc.IsSelfOrAdmin(userID) {
		return apperr.Forbidden(apperr.ReasonInsufficientRole, "you can only access your own cart")
	}
	return nil
}

func (s *userService) GetCart(ctx context.Context, rc auth.RequestContext, userID string) ([]domain.CartLine, error) {
	if err := s.cartOwner(rc, userID); err != nil {
		return nil, err
	}
	return s.users.GetCart(ctx, rc.TenantID(), userID)
}

func (s *userService) AddToCart(ctx context.Context, rc auth.RequestContext, userID string, req CartItemRequest) ([]domain.CartLine, error) {
	if err := s.cartOwner(rc, userID); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.users.AddCartItem(ctx, rc.TenantID(), userID, req.ProductID, req.Quantity); err != nil {
		return nil, err
	}
	return s.users.GetCart(ctx, rc.TenantID(), userID)
}

func (s *userService) UpdateCartItem(ctx context.Context, rc auth.RequestContext, userID string, req CartItemRequest) ([]domain.CartLine, error) {
	if err := s.cartOwner(rc, userID); err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.users.SetCartItem(ctx, rc.TenantID(), userID, req.ProductID, req.Quantity); err != nil {
		return nil, err
	}
	return s.users.GetCart(ctx, rc.TenantID(), userID)
}

func (s *userService) RemoveFromCart(ctx context.Context, rc auth.RequestContext, userID, productID string) ([]domain.CartLine, error) {
	if err := s.cartOwner(rc, userID); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, apperr.Invalid("validation failed", apperr.Detail{Field: "productId", Code: "required", Message: "is required"})
	}
	if err := s.users.RemoveCartItem(ctx, rc.TenantID(), userID, productID); err != nil {
		return nil, err
	}
	return s.users.GetCart(ctx, rc.TenantID(), userID)
}
