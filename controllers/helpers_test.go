package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Tharoon321/go-rentals/cache"
	"github.com/Tharoon321/go-rentals/mail"
	"github.com/Tharoon321/go-rentals/middleware"
	"github.com/Tharoon321/go-rentals/models"
	"github.com/Tharoon321/go-rentals/repository"
	"github.com/Tharoon321/go-rentals/utils"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now().UTC()
	f.users[u.Email] = *u
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeListings struct {
	mu       sync.Mutex
	listings map[primitive.ObjectID]models.Listing
	deletes  int

	// writeErr fails Create and Update when set
	writeErr error
}

func (f *fakeListings) Create(ctx context.Context, l *models.Listing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	l.ID = primitive.NewObjectID()
	l.CreatedAt = time.Now().UTC()
	l.UpdatedAt = l.CreatedAt
	f.listings[l.ID] = *l
	return nil
}

func (f *fakeListings) List(context.Context) ([]models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Listing{}
	for _, l := range f.listings {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeListings) FindByID(_ context.Context, id string) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	l, ok := f.listings[oid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (f *fakeListings) Update(ctx context.Context, id string, patch models.ListingPatch) (*models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	l, ok := f.listings[oid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	applyPatch(&l, patch)
	l.UpdatedAt = time.Now().UTC()
	f.listings[oid] = l
	return &l, nil
}

// applyPatch mirrors the repository's $set of the non-nil patch fields.
func applyPatch(l *models.Listing, p models.ListingPatch) {
	if p.Place != nil {
		l.Place = *p.Place
	}
	if p.Area != nil {
		l.Area = *p.Area
	}
	if p.NoOfBedrooms != nil {
		l.NoOfBedrooms = *p.NoOfBedrooms
	}
	if p.NoOfBathrooms != nil {
		l.NoOfBathrooms = *p.NoOfBathrooms
	}
	if p.Hospital != nil {
		l.Hospital = *p.Hospital
	}
	if p.CollegeNearBy != nil {
		l.CollegeNearBy = *p.CollegeNearBy
	}
	if p.Rent != nil {
		l.Rent = *p.Rent
	}
	if p.Furnished != nil {
		l.Furnished = *p.Furnished
	}
	if p.Parking != nil {
		l.Parking = *p.Parking
	}
	if p.Pet != nil {
		l.Pet = *p.Pet
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Ratings != nil {
		r := *p.Ratings
		l.Ratings = &r
	}
}

func (f *fakeListings) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		delete(f.listings, oid)
	}
	return nil
}

func (f *fakeListings) get(t *testing.T, id primitive.ObjectID) models.Listing {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	require.True(t, ok, "listing %s not stored", id.Hex())
	return l
}

func (f *fakeListings) only(t *testing.T) models.Listing {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.listings, 1)
	for _, l := range f.listings {
		return l
	}
	return models.Listing{}
}

// recordingMailer keeps every message and fails sends to addresses in fail.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	fail map[string]error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.fail[msg.To]
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

type savedBlob struct {
	name    string
	content string
}

type fakeBlobs struct {
	mu      sync.Mutex
	saved   map[string]savedBlob
	deleted []string
	n       int

	// delay stretches every Save, like a slow object store
	delay time.Duration
}

func (b *fakeBlobs) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n++
	ref := fmt.Sprintf("ref%d-%s", b.n, name)
	b.saved[ref] = savedBlob{name: name, content: string(data)}
	return ref, nil
}

func (b *fakeBlobs) Delete(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.saved, ref)
	b.deleted = append(b.deleted, ref)
	return nil
}

func (b *fakeBlobs) stored() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.saved)
}

type testEnv struct {
	router   *gin.Engine
	h        *Controller
	users    *fakeUsers
	listings *fakeListings
	mailer   *recordingMailer
	blobs    *fakeBlobs
	cache    *cache.MemoryStore
	tokens   *utils.TokenManager
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &testEnv{
		users:    &fakeUsers{users: map[string]models.User{}},
		listings: &fakeListings{listings: map[primitive.ObjectID]models.Listing{}},
		mailer:   &recordingMailer{fail: map[string]error{}},
		blobs:    &fakeBlobs{saved: map[string]savedBlob{}},
		cache:    cache.NewMemoryStore(),
		tokens:   utils.NewTokenManager("test-secret", time.Hour),
	}
	logger := zap.NewNop().Sugar()
	h := New(Deps{
		Users:    e.users,
		Listings: e.listings,
		Cache:    e.cache,
		Mailer:   e.mailer,
		Blobs:    e.blobs,
		Tokens:   e.tokens,
		Logger:   logger,
	}, opts)
	e.h = h

	auth := middleware.Auth(e.tokens, e.cache, logger)
	seller := middleware.RequireRole(models.RoleSeller)

	r := gin.New()
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/send-otp", h.SendOTP)
	r.POST("/verify-otp", h.VerifyOTP)
	r.POST("/logout", h.Logout)
	r.GET("/profile", auth, h.Profile)
	r.POST("/post", auth, seller, h.CreatePost)
	r.GET("/getpost", auth, h.GetPosts)
	r.GET("/get/:id", auth, h.GetPost)
	r.PUT("/edit/:id", auth, seller, h.EditPost)
	r.DELETE("/delete/:id", auth, seller, h.DeletePost)
	r.POST("/senddetails/:id", auth, h.SendDetails)
	e.router = r
	return e
}

func (e *testEnv) seedUser(t *testing.T, email, role, first string, phone int64) {
	t.Helper()
	hash, err := utils.HashPassword("pw-" + first)
	require.NoError(t, err)
	require.NoError(t, e.users.Create(context.Background(), &models.User{
		FirstName:   first,
		LastName:    "Test",
		Email:       email,
		PhoneNumber: phone,
		Role:        role,
		Password:    hash,
	}))
}

func (e *testEnv) seedListing(t *testing.T, owner string) models.Listing {
	t.Helper()
	l := &models.Listing{
		Place:         "orig.jpg",
		Area:          "Downtown",
		NoOfBedrooms:  2,
		NoOfBathrooms: 1,
		Hospital:      "City",
		CollegeNearBy: "State U",
		Email:         owner,
		Rent:          1200,
		Furnished:     true,
		Description:   "sunny",
	}
	require.NoError(t, e.listings.Create(context.Background(), l))
	return *l
}

func (e *testEnv) token(t *testing.T, email, role, first string) string {
	t.Helper()
	tok, err := e.tokens.Generate(email, role, first)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		var b []byte
		switch v := body.(type) {
		case string:
			b = []byte(v)
		default:
			var err error
			b, err = json.Marshal(v)
			require.NoError(t, err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

type upload struct {
	name    string
	content string
}

func (e *testEnv) doMultipart(t *testing.T, method, path string, fields map[string]string, file *upload, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile(photoField, file.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(file.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.serve(req, token)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var errRelayDown = errors.New("relay down")
