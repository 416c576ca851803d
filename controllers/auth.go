package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Tharoon321/go-rentals/mail"
	"github.com/Tharoon321/go-rentals/metrics"
	"github.com/Tharoon321/go-rentals/middleware"
	"github.com/Tharoon321/go-rentals/models"
	"github.com/Tharoon321/go-rentals/repository"
	"github.com/Tharoon321/go-rentals/utils"
)

// RegisterInput request body for registration
type RegisterInput struct {
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber *int64 `json:"phoneNumber" binding:"required,min=0,max=9999999999"`
	Role        string `json:"role" binding:"required"` // "Buyer" or "Seller"
	Password    string `json:"password" binding:"required"`
}

// LoginInput request body for login
type LoginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SendOTPInput request body for /send-otp
type SendOTPInput struct {
	Email string `json:"email" binding:"required"`
}

// VerifyOTPInput request body for /verify-otp
type VerifyOTPInput struct {
	Email string  `json:"email"`
	OTP   otpCode `json:"otp"`
}

// otpCode accepts the code as a JSON string or number.
type otpCode string

func (o *otpCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = otpCode(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*o = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*o = otpCode(n.String())
	return nil
}

func otpKey(email string) string {
	return "otp:" + strings.TrimSpace(email)
}

// Register handler: creates a new user
func (h *Controller) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	role, ok := models.CanonicalRole(input.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Role must be Buyer or Seller"})
		return
	}

	ctx, cancel := reqCtx(c, opTimeout)
	defer cancel()

	// check if user already exists
	_, err := h.users.FindByEmail(ctx, input.Email)
	if err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Email Id Already Exists"})
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		h.serverError(c, "register: lookup failed", err)
		return
	}

	// hash the password before saving
	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		h.serverError(c, "register: hash failed", err)
		return
	}

	user := &models.User{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       strings.TrimSpace(input.Email),
		PhoneNumber: *input.PhoneNumber,
		Role:        role,
		Password:    hash,
	}
	if err := h.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicateEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"err": "Email Id Already Exists"})
			return
		}
		h.serverError(c, "register: insert failed", err)
		return
	}

	h.log.Infow("user registered", "email", user.Email, "role", user.Role)
	c.JSON(http.StatusOK, gin.H{"msg": "New User Created"})
}

// Login handler: authenticates and returns JWT
func (h *Controller) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	ctx, cancel := reqCtx(c, opTimeout)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Email Not Found"})
		return
	}
	if err != nil {
		h.serverError(c, "login: lookup failed", err)
		return
	}

	// verify password (hash, plain)
	if err := utils.CheckPassword(user.Password, input.Password); err != nil {
		h.log.Debugw("login: password mismatch", "email", user.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "Invalid Credentials"})
		return
	}

	h.issueToken(c, user)
}

// SendOTP mails a fresh login code to a registered user. Any earlier code
// for the same email stops working.
func (h *Controller) SendOTP(c *gin.Context) {
	var input SendOTPInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Invalid Credentials"})
		return
	}

	ctx, cancel := reqCtx(c, opTimeout)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Invalid Credentials"})
		return
	}
	if err != nil {
		h.serverError(c, "send-otp: lookup failed", err)
		return
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		h.serverError(c, "send-otp: generate failed", err)
		return
	}
	if err := h.cache.Set(ctx, otpKey(user.Email), code, h.opts.OTPTTL); err != nil {
		h.serverError(c, "send-otp: store failed", err)
		return
	}

	mctx, mcancel := reqCtx(c, mailTimeout)
	defer mcancel()
	if err := h.mailer.Send(mctx, mail.OTPMessage(user.Email, code)); err != nil {
		h.log.Errorw("send-otp: mail failed", "email", user.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "Error sending OTP"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "OTP sent successfully"})
}

// VerifyOTP consumes a code and logs the user in. A code verifies at most
// once.
func (h *Controller) VerifyOTP(c *gin.Context) {
	var input VerifyOTPInput
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Email) == "" || input.OTP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Email and OTP are required"})
		return
	}

	ctx, cancel := reqCtx(c, opTimeout)
	defer cancel()

	ok, err := h.cache.CompareAndDelete(ctx, otpKey(input.Email), strings.TrimSpace(string(input.OTP)))
	if err != nil {
		h.serverError(c, "verify-otp: cache failed", err)
		return
	}
	if !ok {
		metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Invalid OTP"})
		return
	}

	user, err := h.users.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Invalid OTP"})
		return
	}
	if err != nil {
		h.serverError(c, "verify-otp: lookup failed", err)
		return
	}

	metrics.OTPVerificationsTotal.WithLabelValues("ok").Inc()
	h.issueToken(c, user)
}

func (h *Controller) issueToken(c *gin.Context, user *models.User) {
	token, err := h.tokens.Generate(user.Email, user.Role, user.FirstName)
	if err != nil {
		h.serverError(c, "token generation failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Profile echoes the identity carried by the caller's token.
func (h *Controller) Profile(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "Token not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"role":      claims.Role,
		"email":     claims.Email,
		"firstName": claims.FirstName,
	})
}

// Logout revokes the presented token until it would have expired anyway.
// It succeeds with or without a token.
func (h *Controller) Logout(c *gin.Context) {
	if tokenStr, ok := middleware.BearerToken(c); ok {
		if claims, err := h.tokens.Parse(tokenStr); err == nil && claims.ID != "" && claims.ExpiresAt != nil {
			if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
				ctx, cancel := reqCtx(c, opTimeout)
				defer cancel()
				if err := h.cache.Set(ctx, middleware.RevokedKey(claims.ID), "1", ttl); err != nil {
					h.log.Errorw("logout: revoke failed", "jti", claims.ID, "error", err)
				}
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Logged out successfully"})
}
