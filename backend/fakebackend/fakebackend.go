// Package fakebackend is an in-memory restaurant backend for tests. It issues HS256 access
// tokens and serves the endpoints the admin server calls.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/myoutlet-admin/restaurants"
)

var signingKey = []byte("fakebackend-signing-key")

type owner struct {
	ID    string
	Email string
	Name  string
}

// Backend is a running fake. Create it with New; it is closed with the test.
type Backend struct {
	*httptest.Server

	mu            sync.Mutex
	owners        map[string]owner
	accessTokens  map[string]string // token -> owner id
	refreshTokens map[string]string
	stores        map[string][]restaurants.Store // owner id -> stores
	tables        map[string][]restaurants.Table // store id -> tables
	gallery       map[string][]restaurants.GalleryImage
	requests      map[string]int

	rotateRefresh bool
	rejectRefresh bool
	failStores    bool
	refreshGate   chan struct{}
	refreshCalls  int
}

type testingT interface {
	Cleanup(func())
}

func New(t testingT) *Backend {
	b := &Backend{
		owners:        make(map[string]owner),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		stores:        make(map[string][]restaurants.Store),
		tables:        make(map[string][]restaurants.Table),
		gallery:       make(map[string][]restaurants.GalleryImage),
		requests:      make(map[string]int),
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Close)
	return b
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.count)

	r.Post("/auth/refresh", b.handleRefresh)
	r.Post("/auth/google/token", b.handleGoogleToken)
	r.Get("/auth/google", b.handleGoogleBroker)

	r.Group(func(r chi.Router) {
		r.Use(b.authenticate)
		r.Get("/store/by-owner", b.handleStoreByOwner)
		r.Get("/store/search", b.handleStoreSearch)
		r.Post("/store", b.handleCreateStore)
		r.Get("/tables/{storeID}", b.handleListTables)
		r.Post("/tables/{storeID}", b.handleAddTable)
		r.Patch("/tables/{tableID}", b.handleUpdateTable)
		r.Delete("/tables/{tableID}", b.handleDeleteTable)
		r.Get("/gallery/list/{storeID}", b.handleListGallery)
		r.Post("/gallery/upload/{storeID}", b.handleUpload)
		r.Delete("/gallery/delete", b.handleDeleteImage)
	})
	return r
}

// SignIn registers an owner and returns a fresh token pair.
func (b *Backend) SignIn(email string) (access, refresh string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.ownerByEmail(email)
	return b.issueAccess(o.ID), b.issueRefresh(o.ID)
}

// User returns the sign-in user JSON of email, with refreshToken embedded like the broker does.
func (b *Backend) User(email, refreshToken string) string {
	b.mu.Lock()
	o := b.ownerByEmail(email)
	b.mu.Unlock()
	data, _ := json.Marshal(map[string]string{"id": o.ID, "email": o.Email, "name": o.Name, "refresh_token": refreshToken})
	return string(data)
}

// AddStore gives the owner of email a store.
func (b *Backend) AddStore(email string, store restaurants.Store) restaurants.Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.ownerByEmail(email)
	if store.ID == "" {
		store.ID = uuid.NewString()
	}
	store.OwnerID = o.ID
	b.stores[o.ID] = append(b.stores[o.ID], store)
	return store
}

// ExpireAccessTokens invalidates every issued access token.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessTokens = make(map[string]string)
}

// RevokeRefreshTokens makes every refresh call fail.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectRefresh = true
}

// FailStoreLookups makes GET /store/by-owner answer 500.
func (b *Backend) FailStoreLookups() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failStores = true
}

// RotateRefreshTokens makes refresh calls return a new refresh token.
func (b *Backend) RotateRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotateRefresh = true
}

// HoldRefresh blocks refresh calls until the returned func is called.
func (b *Backend) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.refreshGate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (b *Backend) RefreshCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCalls
}

// Requests returns how many requests were made to path.
func (b *Backend) Requests(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[path]
}

func (b *Backend) Tables(storeID string) []restaurants.Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]restaurants.Table(nil), b.tables[storeID]...)
}

func (b *Backend) Gallery(storeID string) []restaurants.GalleryImage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]restaurants.GalleryImage(nil), b.gallery[storeID]...)
}

func (b *Backend) ownerByEmail(email string) owner {
	for _, o := range b.owners {
		if o.Email == email {
			return o
		}
	}
	o := owner{ID: uuid.NewString(), Email: email, Name: strings.Split(email, "@")[0]}
	b.owners[o.ID] = o
	return o
}

func (b *Backend) issueAccess(ownerID string) string {
	o := b.owners[ownerID]
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   o.ID,
		"email": o.Email,
		"name":  o.Name,
		"jti":   uuid.NewString(),
		"exp":   time.Now().Add(15 * time.Minute).Unix(),
	})
	signed, err := token.SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	b.accessTokens[signed] = ownerID
	return signed
}

func (b *Backend) issueRefresh(ownerID string) string {
	token := "rt-" + uuid.NewString()
	b.refreshTokens[token] = ownerID
	return token
}

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests[r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

type ownerKey struct{}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		ownerID, ok := b.accessTokens[token]
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		r.Header.Set("X-Owner-ID", ownerID)
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	b.mu.Lock()
	b.refreshCalls++
	gate := b.refreshGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	ownerID, ok := b.refreshTokens[in.RefreshToken]
	if !ok || b.rejectRefresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid refresh token"})
		return
	}
	out := map[string]string{"access_token": b.issueAccess(ownerID)}
	if b.rotateRefresh {
		delete(b.refreshTokens, in.RefreshToken)
		out["refresh_token"] = b.issueRefresh(ownerID)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGoogleToken accepts any JWT shaped ID token and trusts its email claim.
func (b *Backend) handleGoogleToken(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.IDToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "id_token required"})
		return
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(in.IDToken, claims); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": err.Error()})
		return
	}
	email, _ := claims["email"].(string)

	b.mu.Lock()
	o := b.ownerByEmail(email)
	access, refresh := b.issueAccess(o.ID), b.issueRefresh(o.ID)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          map[string]string{"id": o.ID, "email": o.Email, "name": o.Name},
	})
}

// handleGoogleBroker signs in owner@example.com straight away and redirects back.
func (b *Backend) handleGoogleBroker(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect_uri")
	if redirect == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "redirect_uri required"})
		return
	}
	access, refresh := b.SignIn("owner@example.com")
	q := url.Values{}
	q.Set("access_token", access)
	q.Set("user", b.User("owner@example.com", refresh))
	if state := r.URL.Query().Get("state"); state != "" {
		q.Set("state", state)
	}
	http.Redirect(w, r, redirect+"?"+q.Encode(), http.StatusFound)
}

func (b *Backend) handleStoreByOwner(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	fail := b.failStores
	stores := append([]restaurants.Store{}, b.stores[r.Header.Get("X-Owner-ID")]...)
	b.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "store lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, stores)
}

func (b *Backend) handleStoreSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	b.mu.Lock()
	found := []restaurants.Store{}
	for _, stores := range b.stores {
		for _, s := range stores {
			if q != "" && strings.Contains(strings.ToLower(s.Name), q) {
				found = append(found, s)
			}
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, found)
}

func (b *Backend) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var in restaurants.CreateStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name required"})
		return
	}
	ownerID := r.Header.Get("X-Owner-ID")
	now := time.Now().UTC().Truncate(time.Second)
	store := restaurants.Store{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Subdomain:     in.Subdomain,
		Currency:      in.Currency,
		Language:      in.Language,
		CustomDomain:  in.CustomDomain,
		ParentStoreID: in.ParentStoreID,
		IsActive:      true,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.mu.Lock()
	b.stores[ownerID] = append(b.stores[ownerID], store)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, store)
}

func (b *Backend) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, append([]restaurants.Table{}, b.Tables(chi.URLParam(r, "storeID"))...))
}

func (b *Backend) handleAddTable(w http.ResponseWriter, r *http.Request) {
	var in restaurants.TableInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	storeID := chi.URLParam(r, "storeID")
	table := restaurants.Table{ID: uuid.NewString(), TableName: in.TableName, SeatCount: in.SeatCount, StoreID: storeID}
	b.mu.Lock()
	b.tables[storeID] = append(b.tables[storeID], table)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, table)
}

func (b *Backend) handleUpdateTable(w http.ResponseWriter, r *http.Request) {
	var in restaurants.TableInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	id := chi.URLParam(r, "tableID")
	b.mu.Lock()
	defer b.mu.Unlock()
	for storeID, tables := range b.tables {
		for i := range tables {
			if tables[i].ID == id {
				tables[i].TableName = in.TableName
				tables[i].SeatCount = in.SeatCount
				b.tables[storeID] = tables
				writeJSON(w, http.StatusOK, tables[i])
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "table not found"})
}

func (b *Backend) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tableID")
	b.mu.Lock()
	defer b.mu.Unlock()
	for storeID, tables := range b.tables {
		for i := range tables {
			if tables[i].ID == id {
				b.tables[storeID] = append(tables[:i:i], tables[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "table not found"})
}

func (b *Backend) handleListGallery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, append([]restaurants.GalleryImage{}, b.Gallery(chi.URLParam(r, "storeID"))...))
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	storeID := chi.URLParam(r, "storeID")
	var added []restaurants.GalleryImage
	for _, fh := range r.MultipartForm.File["file"] {
		f, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		_, _ = io.Copy(io.Discard, f)
		f.Close()
		key := fmt.Sprintf("%s/%s-%s", storeID, uuid.NewString(), fh.Filename)
		added = append(added, restaurants.GalleryImage{
			DisplayURL:   "https://cdn.example.com/" + key,
			CopyURL:      "https://cdn.example.com/" + key,
			Key:          key,
			OriginalName: fh.Filename,
		})
	}
	b.mu.Lock()
	b.gallery[storeID] = append(b.gallery[storeID], added...)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, added)
}

func (b *Backend) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	b.mu.Lock()
	defer b.mu.Unlock()
	for storeID, images := range b.gallery {
		for i := range images {
			if images[i].Key == key {
				b.gallery[storeID] = append(images[:i:i], images[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "image not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
