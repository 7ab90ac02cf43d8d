package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/database/models"
	"github.com/kritiqo/core/internal/user"
)

var (
	// ErrUserNotFound indicates the user was not found
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists indicates the username is already taken
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials indicates invalid login credentials
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordTooShort indicates the password is too short
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
)

// UserService handles user-related business logic
type UserService struct {
	db          *gorm.DB
	userManager *user.Manager
}

// NewUserService creates a new UserService instance
func NewUserService(db *gorm.DB, userManager *user.Manager) *UserService {
	return &UserService{
		db:          db,
		userManager: userManager,
	}
}

// CreateUser creates a new user with a hashed password and default settings
func (s *UserService) CreateUser(username, password, businessName string) (*models.User, error) {
	if len(password) < 6 {
		return nil, ErrPasswordTooShort
	}

	var existingUser models.User
	if err := s.db.Where("username = ?", username).First(&existingUser).Error; err == nil {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	newUser := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		BusinessName: businessName,
	}

	if err := s.db.Create(newUser).Error; err != nil {
		return nil, err
	}

	if err := s.userManager.CreateUserDirectories(newUser.ID); err != nil {
		s.db.Delete(newUser)
		return nil, err
	}

	settings := &models.UserSettings{UserID: newUser.ID}
	if err := s.db.Create(settings).Error; err != nil {
		s.userManager.DeleteUserDirectories(newUser.ID)
		s.db.Delete(newUser)
		return nil, err
	}

	return newUser, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(id uint) (*models.User, error) {
	var foundUser models.User
	if err := s.db.First(&foundUser, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &foundUser, nil
}

// GetUserByUsername retrieves a user by username
func (s *UserService) GetUserByUsername(username string) (*models.User, error) {
	var foundUser models.User
	if err := s.db.Where("username = ?", username).First(&foundUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &foundUser, nil
}

// ListUsers returns all users
func (s *UserService) ListUsers() ([]models.User, error) {
	var users []models.User
	if err := s.db.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser deletes a user and their data
func (s *UserService) DeleteUser(id uint) error {
	foundUser, err := s.GetUserByID(id)
	if err != nil {
		return err
	}

	s.db.Where("user_id = ?", id).Delete(&models.UserSettings{})
	s.db.Where("user_id = ?", id).Delete(&models.ConnectedAccount{})

	if err := s.userManager.DeleteUserDirectories(id); err != nil {
		// Continue with database deletion regardless
	}

	return s.db.Delete(foundUser).Error
}

// VerifyPassword verifies a user's password for login
func (s *UserService) VerifyPassword(username, password string) (*models.User, error) {
	foundUser, err := s.GetUserByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(foundUser.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return foundUser, nil
}

// ChangePassword changes a user's password after verifying the old one
func (s *UserService) ChangePassword(id uint, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrPasswordTooShort
	}

	foundUser, err := s.GetUserByID(id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(foundUser.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	foundUser.PasswordHash = string(hashedPassword)
	return s.db.Save(foundUser).Error
}

// ResetPassword resets a user's password (admin operation)
func (s *UserService) ResetPassword(id uint, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrPasswordTooShort
	}

	foundUser, err := s.GetUserByID(id)
	if err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	foundUser.PasswordHash = string(hashedPassword)
	return s.db.Save(foundUser).Error
}

// GetUserSettings retrieves user settings, creating defaults if missing
func (s *UserService) GetUserSettings(userID uint) (*models.UserSettings, error) {
	var settings models.UserSettings
	if err := s.db.Where("user_id = ?", userID).First(&settings).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		settings = models.UserSettings{UserID: userID}
		if err := s.db.Create(&settings).Error; err != nil {
			return nil, err
		}
	}
	return &settings, nil
}

// UpdateUserSettings updates user settings
func (s *UserService) UpdateUserSettings(userID uint, settings *models.UserSettings) error {
	existing, err := s.GetUserSettings(userID)
	if err != nil {
		return err
	}
	settings.ID = existing.ID
	settings.UserID = userID
	return s.db.Save(settings).Error
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// ComparePassword compares a password with a hash
func ComparePassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
