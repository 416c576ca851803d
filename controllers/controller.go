// Package controllers holds the HTTP handlers. Every collaborator is
// injected through New so handlers can be tested against in-memory fakes.
package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tharoon321/go-rentals/blob"
	"github.com/Tharoon321/go-rentals/cache"
	"github.com/Tharoon321/go-rentals/mail"
	"github.com/Tharoon321/go-rentals/models"
	"github.com/Tharoon321/go-rentals/utils"
)

const (
	opTimeout     = 5 * time.Second
	scanTimeout   = 10 * time.Second
	mailTimeout   = 10 * time.Second
	uploadTimeout = 10 * time.Second
)

// UserStore is the credential store.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// ListingStore is the listing store. Lookups by a malformed id behave like
// lookups of a missing one.
type ListingStore interface {
	Create(ctx context.Context, l *models.Listing) error
	List(ctx context.Context) ([]models.Listing, error)
	FindByID(ctx context.Context, id string) (*models.Listing, error)
	Update(ctx context.Context, id string, patch models.ListingPatch) (*models.Listing, error)
	Delete(ctx context.Context, id string) error
}

// Tokens mints and verifies session tokens.
type Tokens interface {
	Generate(email, role, firstName string) (string, error)
	Parse(token string) (*utils.Claims, error)
}

// Deps are the collaborators the handlers use.
type Deps struct {
	Users    UserStore
	Listings ListingStore
	Cache    cache.Store
	Mailer   mail.Notifier
	Blobs    blob.Store
	Tokens   Tokens
	Logger   *zap.SugaredLogger
}

// Options tune handler behaviour.
type Options struct {
	OTPTTL time.Duration
	// EnforceListingOwnership limits edit and delete to the listing's owner.
	EnforceListingOwnership bool
}

type Controller struct {
	users    UserStore
	listings ListingStore
	cache    cache.Store
	mailer   mail.Notifier
	blobs    blob.Store
	tokens   Tokens
	log      *zap.SugaredLogger
	opts     Options

	// per-call budgets for listing writes and photo uploads
	writeTimeout  time.Duration
	uploadTimeout time.Duration
}

func New(d Deps, opts Options) *Controller {
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	return &Controller{
		users:    d.Users,
		listings: d.Listings,
		cache:    d.Cache,
		mailer:   d.Mailer,
		blobs:    d.Blobs,
		tokens:   d.Tokens,
		log:      d.Logger,
		opts:     opts,

		writeTimeout:  opTimeout,
		uploadTimeout: uploadTimeout,
	}
}

// reqCtx bounds a store or mail call by d and by the request's lifetime.
func reqCtx(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

// tooLarge reports whether err came from reading past the body limit.
func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (h *Controller) respondTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{"err": "File too large"})
}

// serverError logs err and answers with a generic 500. The cause never
// reaches the client.
func (h *Controller) serverError(c *gin.Context, msg string, err error) {
	h.log.Errorw(msg, "error", err, "method", c.Request.Method, "path", c.FullPath())
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"err": "Server Error"})
}
