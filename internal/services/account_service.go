package services

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kritiqo/core/internal/database/models"
	"github.com/kritiqo/core/internal/mail"
)

var (
	// ErrAccountNotFound indicates the connected account was not found
	ErrAccountNotFound = errors.New("connected account not found")
	// ErrAccountAlreadyExists indicates the mailbox is already linked
	ErrAccountAlreadyExists = errors.New("mailbox already connected for this user")
	// ErrInvalidAccountData indicates invalid account data
	ErrInvalidAccountData = errors.New("invalid account data")
	// ErrEncryptionFailed indicates credential encryption failed
	ErrEncryptionFailed = errors.New("credential encryption failed")
	// ErrDecryptionFailed indicates credential decryption failed
	ErrDecryptionFailed = errors.New("credential decryption failed")
	// ErrUnsupportedProvider indicates an unknown mailbox provider
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

// AccountService handles connected mailbox business logic. All credentials
// go through AES-256-GCM before touching the database.
type AccountService struct {
	db            *gorm.DB
	encryptionKey []byte // 32 bytes for AES-256
	logService    *LogService
}

// NewAccountService creates a new AccountService instance
func NewAccountService(db *gorm.DB, encryptionKey []byte) *AccountService {
	key := make([]byte, 32)
	copy(key, encryptionKey)
	return &AccountService{
		db:            db,
		encryptionKey: key,
		logService:    NewLogService(db),
	}
}

// encryptSecret encrypts a credential using AES-256-GCM
func (s *AccountService) encryptSecret(secret string) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptionFailed
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(secret), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decryptSecret decrypts a credential using AES-256-GCM
func (s *AccountService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", ErrDecryptionFailed
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// ConnectIMAPInput represents the input for linking an IMAP mailbox
type ConnectIMAPInput struct {
	UserID   uint
	Email    string
	Host     string
	Port     int
	Password string
}

// ConnectIMAP links a mailbox over IMAP with an app password. Credentials
// are validated with a real login before anything is persisted.
func (s *AccountService) ConnectIMAP(input ConnectIMAPInput) (*models.ConnectedAccount, error) {
	if input.Email == "" || input.Password == "" {
		return nil, ErrInvalidAccountData
	}

	var existing models.ConnectedAccount
	err := s.db.Where("user_id = ? AND provider = ? AND email = ?",
		input.UserID, models.ProviderIMAP, input.Email).First(&existing).Error
	if err == nil {
		return nil, ErrAccountAlreadyExists
	}

	src := mail.NewIMAPSource(input.Host, input.Port, input.Email, input.Password)
	if err := src.Validate(); err != nil {
		return nil, err
	}

	encrypted, err := s.encryptSecret(input.Password)
	if err != nil {
		return nil, err
	}

	account := &models.ConnectedAccount{
		UserID:            input.UserID,
		Provider:          models.ProviderIMAP,
		Email:             input.Email,
		IMAPHost:          src.Host,
		IMAPPort:          src.Port,
		PasswordEncrypted: encrypted,
		Enabled:           true,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, err
	}

	s.logService.LogAccountConnected(input.UserID, account.ID, account.Provider, account.Email)
	return account, nil
}

// ConnectOAuthInput represents the input for linking an OAuth mailbox
type ConnectOAuthInput struct {
	UserID       uint
	Provider     models.Provider
	Email        string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	TenantID     string // azure-ad only
}

// ConnectOAuth links a Gmail or Outlook mailbox. Re-linking an existing
// mailbox replaces its tokens instead of failing.
func (s *AccountService) ConnectOAuth(input ConnectOAuthInput) (*models.ConnectedAccount, error) {
	if input.Email == "" || input.RefreshToken == "" || !input.Provider.IsValid() || input.Provider == models.ProviderIMAP {
		return nil, ErrInvalidAccountData
	}

	encryptedAccess, err := s.encryptSecret(input.AccessToken)
	if err != nil {
		return nil, err
	}
	encryptedRefresh, err := s.encryptSecret(input.RefreshToken)
	if err != nil {
		return nil, err
	}

	var existing models.ConnectedAccount
	err = s.db.Where("user_id = ? AND provider = ? AND email = ?",
		input.UserID, input.Provider, input.Email).First(&existing).Error
	if err == nil {
		existing.AccessTokenEncrypted = encryptedAccess
		existing.RefreshTokenEncrypted = encryptedRefresh
		existing.TokenExpiresAt = input.ExpiresAt
		existing.TenantID = input.TenantID
		existing.Enabled = true
		if err := s.db.Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	account := &models.ConnectedAccount{
		UserID:                input.UserID,
		Provider:              input.Provider,
		Email:                 input.Email,
		AccessTokenEncrypted:  encryptedAccess,
		RefreshTokenEncrypted: encryptedRefresh,
		TokenExpiresAt:        input.ExpiresAt,
		TenantID:              input.TenantID,
		Enabled:               true,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, err
	}

	s.logService.LogAccountConnected(input.UserID, account.ID, account.Provider, account.Email)
	return account, nil
}

// GetAccountByIDAndUserID retrieves an account scoped to its owner
func (s *AccountService) GetAccountByIDAndUserID(id, userID uint) (*models.ConnectedAccount, error) {
	var account models.ConnectedAccount
	if err := s.db.Where("id = ? AND user_id = ?", id, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountsByUserID retrieves all connected accounts for a user
func (s *AccountService) GetAccountsByUserID(userID uint) ([]models.ConnectedAccount, error) {
	var accounts []models.ConnectedAccount
	if err := s.db.Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetEnabledAccounts retrieves all enabled accounts across users
func (s *AccountService) GetEnabledAccounts() ([]models.ConnectedAccount, error) {
	var accounts []models.ConnectedAccount
	if err := s.db.Where("enabled = ?", true).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// DeleteAccount unlinks a mailbox
func (s *AccountService) DeleteAccount(id, userID uint) error {
	account, err := s.GetAccountByIDAndUserID(id, userID)
	if err != nil {
		return err
	}

	email := account.Email
	if err := s.db.Delete(account).Error; err != nil {
		return err
	}

	s.logService.LogAccountDeleted(userID, id, email)
	return nil
}

// SetAccountEnabled sets the enabled status of an account
func (s *AccountService) SetAccountEnabled(id, userID uint, enabled bool) (*models.ConnectedAccount, error) {
	account, err := s.GetAccountByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}

	account.Enabled = enabled
	if err := s.db.Save(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// MarkSynced records a successful ingestion run
func (s *AccountService) MarkSynced(accountID uint) error {
	return s.db.Model(&models.ConnectedAccount{}).
		Where("id = ?", accountID).
		Update("last_sync_at", time.Now()).Error
}

// UpdateAccessToken persists a refreshed access token
func (s *AccountService) UpdateAccessToken(accountID uint, accessToken string, expiry time.Time) error {
	encrypted, err := s.encryptSecret(accessToken)
	if err != nil {
		return err
	}
	return s.db.Model(&models.ConnectedAccount{}).Where("id = ?", accountID).Updates(map[string]interface{}{
		"access_token_encrypted": encrypted,
		"token_expires_at":       expiry,
	}).Error
}

// DecryptedTokens returns the decrypted OAuth tokens for an account
func (s *AccountService) DecryptedTokens(account *models.ConnectedAccount) (accessToken, refreshToken string, err error) {
	if account.AccessTokenEncrypted != "" {
		accessToken, err = s.decryptSecret(account.AccessTokenEncrypted)
		if err != nil {
			return "", "", err
		}
	}
	if account.RefreshTokenEncrypted != "" {
		refreshToken, err = s.decryptSecret(account.RefreshTokenEncrypted)
		if err != nil {
			return "", "", err
		}
	}
	return accessToken, refreshToken, nil
}

// DecryptedPassword returns the decrypted IMAP app password
func (s *AccountService) DecryptedPassword(account *models.ConnectedAccount) (string, error) {
	return s.decryptSecret(account.PasswordEncrypted)
}

// SourceFor builds the mail adapter for one connected account, refreshing
// OAuth tokens as needed.
func (s *AccountService) SourceFor(ctx context.Context, account *models.ConnectedAccount) (mail.Source, error) {
	switch account.Provider {
	case models.ProviderIMAP:
		password, err := s.DecryptedPassword(account)
		if err != nil {
			return nil, err
		}
		return mail.NewIMAPSource(account.IMAPHost, account.IMAPPort, account.Email, password), nil

	case models.ProviderGoogle:
		accessToken, err := s.ensureGoogleToken(ctx, account)
		if err != nil {
			return nil, err
		}
		return mail.NewGmailSource(ctx, accessToken)

	case models.ProviderAzureAD:
		accessToken, refreshToken, err := s.DecryptedTokens(account)
		if err != nil {
			return nil, err
		}
		clientID, clientSecret := s.azureClientConfig()
		src := mail.NewOutlookSource(s.azureTenantFor(account), clientID, clientSecret,
			accessToken, refreshToken, account.TokenExpiresAt)
		accountID := account.ID
		src.OnTokenRefresh = func(token string, expiry time.Time) {
			s.UpdateAccessToken(accountID, token, expiry)
		}
		return src, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, account.Provider)
}

// ensureGoogleToken returns a valid Google access token, refreshing and
// persisting it when the stored one is expired.
func (s *AccountService) ensureGoogleToken(ctx context.Context, account *models.ConnectedAccount) (string, error) {
	accessToken, refreshToken, err := s.DecryptedTokens(account)
	if err != nil {
		return "", err
	}

	if accessToken != "" && time.Now().Before(account.TokenExpiresAt.Add(-time.Minute)) {
		return accessToken, nil
	}
	if refreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", mail.ErrAuthFailed)
	}

	clientID, clientSecret := s.googleClientConfig(account.UserID)
	if clientID == "" || clientSecret == "" {
		return "", fmt.Errorf("%w: google oauth client not configured", mail.ErrAuthFailed)
	}

	token, expiry, err := s.doGoogleTokenRefresh(ctx, clientID, clientSecret, refreshToken)
	if err != nil {
		return "", err
	}

	if err := s.UpdateAccessToken(account.ID, token, expiry); err != nil {
		return "", err
	}
	account.TokenExpiresAt = expiry

	return token, nil
}

// googleClientConfig reads the OAuth app credentials, preferring per-user
// settings over environment variables.
func (s *AccountService) googleClientConfig(userID uint) (clientID, clientSecret string) {
	var settings models.UserSettings
	if err := s.db.Where("user_id = ?", userID).First(&settings).Error; err == nil {
		if settings.GoogleClientID != "" && settings.GoogleClientSecret != "" {
			return settings.GoogleClientID, settings.GoogleClientSecret
		}
	}
	return os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET")
}

// azureClientConfig reads the Azure AD app credentials from the environment
func (s *AccountService) azureClientConfig() (clientID, clientSecret string) {
	return os.Getenv("AZURE_AD_CLIENT_ID"), os.Getenv("AZURE_AD_CLIENT_SECRET")
}

// azureTenantFor resolves the token endpoint tenant for an account: the
// account's own tenant, then the user's configured one, then "common".
func (s *AccountService) azureTenantFor(account *models.ConnectedAccount) string {
	if account.TenantID != "" {
		return account.TenantID
	}
	var settings models.UserSettings
	if err := s.db.Where("user_id = ?", account.UserID).First(&settings).Error; err == nil {
		if settings.AzureTenantID != "" {
			return settings.AzureTenantID
		}
	}
	return "common"
}

// doGoogleTokenRefresh exchanges a refresh token for a new access token
func (s *AccountService) doGoogleTokenRefresh(ctx context.Context, clientID, clientSecret, refreshToken string) (string, time.Time, error) {
	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", mail.ErrSourceUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: token refresh: %v", mail.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("%w: token refresh returned %d", mail.ErrAuthFailed, resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", mail.ErrSourceUnavailable, err)
	}
	if tokenResp.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty access token", mail.ErrAuthFailed)
	}

	expiry := time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return tokenResp.AccessToken, expiry, nil
}
