package services

import (
	"errors"
	"time"

	"github.com/huangang/auditdesk/backend/internal/config"
	"github.com/huangang/auditdesk/backend/internal/models"
	"github.com/huangang/auditdesk/backend/internal/utils"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{db: db, jwtConfig: jwtCfg}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	ExpireAt time.Time    `json:"expire_at"`
}

// Login checks local credentials and issues an access token
func (s *AuthService) Login(req *LoginRequest) (*LoginResponse, error) {
	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, errors.New("user is disabled")
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	hours := s.jwtConfig.ExpireHour
	if hours <= 0 {
		hours = 24
	}
	token, err := utils.GenerateToken(user.ID, user.Username, user.Email, user.Role, hours)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Model(&user).Update("last_login", now)

	return &LoginResponse{
		Token:    token,
		User:     &user,
		ExpireAt: now.Add(time.Duration(hours) * time.Hour),
	}, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateAdminIfNotExists creates the bootstrap admin account on an empty user table
func (s *AuthService) CreateAdminIfNotExists(admin *config.AdminConfig) (bool, error) {
	var count int64
	s.db.Model(&models.User{}).Where("role = ?", "admin").Count(&count)
	if count > 0 {
		return false, nil
	}

	hashedPassword, err := utils.HashPassword(admin.Password)
	if err != nil {
		return false, err
	}

	user := models.User{
		Username: admin.Username,
		Password: hashedPassword,
		Email:    admin.Email,
		Nickname: "Administrator",
		Role:     "admin",
		IsActive: true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return false, err
	}
	return true, nil
}
