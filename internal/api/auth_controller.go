package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"weatherdash/server/internal/models"
)

// AuthController управляет API endpoints для авторизации
type AuthController struct {
	db     *gorm.DB
	secret string
}

// NewAuthController создает новый контроллер авторизации
func NewAuthController(db *gorm.DB, secret string) *AuthController {
	return &AuthController{db: db, secret: secret}
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest представляет запрос на регистрацию
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
}

// AuthResponse представляет ответ на успешный вход
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        *models.User `json:"user"`
}

// Login обрабатывает вход пользователя
// POST /api/v1/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	var user models.User
	if err := ac.db.Where("email = ? AND is_active = ?", req.Email, true).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный email или пароль"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка проверки учетных данных"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Неверный email или пароль"})
		return
	}

	// Обновляем время последнего входа; сам вход уже успешен,
	// поэтому ошибку только логируем
	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := ac.db.Save(&user).Error; err != nil {
		log.Printf("⚠️ Не удалось обновить время входа пользователя %s: %v", user.ID, err)
	}

	token := signToken(user.ID, now.Add(24*time.Hour), ac.secret)

	c.JSON(http.StatusOK, AuthResponse{
		AccessToken: token,
		User:        &user,
	})
}

// Register регистрирует нового пользователя с ролью "user"
// POST /api/v1/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Неверные параметры запроса",
			"details": err.Error(),
		})
		return
	}

	var count int64
	if err := ac.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка проверки email"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Пользователь с таким email уже существует"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка хеширования пароля"})
		return
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         "user",
	}
	if err := ac.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания пользователя"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Profile возвращает профиль авторизованного пользователя
// POST /api/v1/auth/profile
func (ac *AuthController) Profile(c *gin.Context) {
	userID := c.GetString(ContextUserID)

	var user models.User
	if err := ac.db.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Пользователь не найден"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// signToken создает подписанный bearer-токен вида "<userID>.<expUnix>.<подпись>".
// Подпись — HMAC-SHA256 от полезной части на секрете из конфига.
func signToken(userID string, expiresAt time.Time, secret string) string {
	payload := fmt.Sprintf("%s.%d", userID, expiresAt.Unix())
	return payload + "." + signPayload(payload, secret)
}

// parseToken проверяет подпись и срок действия токена, возвращает userID
func parseToken(token, secret string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("неверный формат токена")
	}

	payload := parts[0] + "." + parts[1]
	expected := signPayload(payload, secret)
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return "", fmt.Errorf("неверная подпись токена")
	}

	exp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("неверный срок действия токена")
	}
	if time.Now().Unix() > exp {
		return "", fmt.Errorf("срок действия токена истек")
	}

	return parts[0], nil
}

func signPayload(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
