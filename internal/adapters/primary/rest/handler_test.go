package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

// --- Stubs des ports primaires ---

type stubVerifier map[string]string // token -> owner

func (s stubVerifier) Verify(token string) (string, error) {
	if owner, ok := s[token]; ok {
		return owner, nil
	}
	return "", errors.New("bad token")
}

type stubProfiles struct {
	ports.ProfileService // méthodes non utilisées : panic si appelées

	byOwner   map[string]*domain.Profile
	createErr error
	publicErr error
	lastCmd   ports.CreateProfileCmd
	lastQuery ports.ListProfilesQuery
}

func (s *stubProfiles) CreateProfile(_ context.Context, cmd ports.CreateProfileCmd) (*domain.Profile, error) {
	s.lastCmd = cmd
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &domain.Profile{ID: "p-new", OwnerID: cmd.OwnerID, Username: cmd.Username, Name: cmd.Name}, nil
}

func (s *stubProfiles) GetProfileByOwner(_ context.Context, ownerID string) (*domain.Profile, error) {
	if p, ok := s.byOwner[ownerID]; ok {
		return p, nil
	}
	return nil, domain.ErrProfileNotFound
}

func (s *stubProfiles) ListProfiles(_ context.Context, q ports.ListProfilesQuery) ([]*domain.Profile, string, error) {
	s.lastQuery = q
	return []*domain.Profile{{ID: "p1", Username: "alice"}}, "next-token", nil
}

func (s *stubProfiles) GetPublicProfile(_ context.Context, username string) (*domain.PublicProfile, error) {
	if s.publicErr != nil {
		return nil, s.publicErr
	}
	if username != "alice" {
		return nil, domain.ErrProfileNotFound
	}
	return &domain.PublicProfile{
		Profile: &domain.Profile{ID: "p1", OwnerID: "secret-owner", Username: "alice", Name: "Alice"},
		Links:   []domain.SocialLink{{ID: "l1", Platform: "github", URL: "https://github.com/alice", OrderIndex: 0}},
		Stats:   domain.ProfileStats{ProfileID: "p1", ViewsCount: 3},
	}, nil
}

func (s *stubProfiles) DeleteLink(_ context.Context, profileID, linkID string) error {
	if linkID == "missing" {
		return domain.ErrLinkNotFound
	}
	return nil
}

type stubFollows struct {
	ports.FollowService

	lastFollower, lastFollowing string
	followErr                   error
}

func (s *stubFollows) Follow(_ context.Context, followerID, followingID string) (*domain.FollowEdge, error) {
	s.lastFollower, s.lastFollowing = followerID, followingID
	if s.followErr != nil {
		return nil, s.followErr
	}
	return &domain.FollowEdge{ID: "e1", FollowerID: followerID, FollowingID: followingID, CreatedAt: time.Now()}, nil
}

func (s *stubFollows) Unfollow(_ context.Context, followerID, followingID string) error {
	s.lastFollower, s.lastFollowing = followerID, followingID
	return nil
}

type stubStats struct {
	ports.StatsService
	err        error
	reconciled []string
}

func (s *stubStats) GetStats(_ context.Context, profileID string) (domain.ProfileStats, error) {
	if s.err != nil {
		return domain.ProfileStats{}, s.err
	}
	return domain.ProfileStats{ProfileID: profileID, FollowersCount: 2}, nil
}

func (s *stubStats) ReconcileStats(_ context.Context, profileID string) (domain.ProfileStats, error) {
	s.reconciled = append(s.reconciled, profileID)
	return domain.ProfileStats{ProfileID: profileID}, nil
}

type stubMedia struct {
	lastUpload domain.Upload
}

func (s *stubMedia) UploadAvatar(_ context.Context, ownerID string, up domain.Upload) (*domain.MediaAsset, error) {
	s.lastUpload = up
	return &domain.MediaAsset{PublicID: "avatars/x", URL: "https://cdn.example/x.png", Format: "png"}, nil
}

func (s *stubMedia) OptimizedURL(publicID string, opts domain.ImageOptions) string {
	return fmt.Sprintf("https://cdn.example/w_%d/%s", opts.Width, publicID)
}

// --- Fixture ---

type testAPI struct {
	profiles *stubProfiles
	follows  *stubFollows
	stats    *stubStats
	media    *stubMedia
	handler  http.Handler
}

func newTestAPI() *testAPI {
	api := &testAPI{
		profiles: &stubProfiles{byOwner: map[string]*domain.Profile{
			"owner-alice": {ID: "p-alice", OwnerID: "owner-alice", Username: "alice"},
		}},
		follows: &stubFollows{},
		stats:   &stubStats{},
		media:   &stubMedia{},
	}
	h := NewHandler(api.profiles, api.follows, api.stats, api.media, 1024)
	api.handler = h.Routes(stubVerifier{"good-token": "owner-alice", "orphan-token": "owner-without-profile"})
	return api
}

func (api *testAPI) do(method, path, token string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	rec := newTestAPI().do(http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAuthentication(t *testing.T) {
	api := newTestAPI()
	body := `{"username":"alice","name":"Alice"}`

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "anonymous", header: "", want: http.StatusUnauthorized},
		{name: "bad scheme", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good-token", want: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/profiles", strings.NewReader(body))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			api.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCreateProfileUsesSessionOwner(t *testing.T) {
	api := newTestAPI()
	rec := api.do(http.MethodPost, "/v1/profiles", "good-token",
		`{"username":"alice","name":"Alice","links":[{"platform":"github","url":"https://github.com/alice"}]}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if api.profiles.lastCmd.OwnerID != "owner-alice" {
		t.Errorf("OwnerID = %q, want owner from token", api.profiles.lastCmd.OwnerID)
	}
	if len(api.profiles.lastCmd.Links) != 1 || api.profiles.lastCmd.Links[0].Platform != "github" {
		t.Errorf("links = %+v", api.profiles.lastCmd.Links)
	}

	var resp profileResponse
	decodeBody(t, rec, &resp)
	if resp.ID != "p-new" || resp.Username != "alice" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateProfileErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		body     string
		want     int
		wantText string
	}{
		{name: "taken", err: fmt.Errorf("create profile: %w", domain.ErrUsernameTaken), want: http.StatusConflict, wantText: "username already taken"},
		{name: "validation", err: &domain.ValidationError{Field: "username", Reason: "is required"}, want: http.StatusBadRequest, wantText: "username"},
		{name: "transient", err: fmt.Errorf("db: %w", domain.ErrTransient), want: http.StatusServiceUnavailable, wantText: "retry"},
		{name: "unknown", err: errors.New("pq: something exploded"), want: http.StatusInternalServerError, wantText: "internal error"},
		{name: "bad json", body: `{"username":`, want: http.StatusBadRequest, wantText: "body"},
		{name: "unknown field", body: `{"user_id":"spoofed"}`, want: http.StatusBadRequest, wantText: "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI()
			api.profiles.createErr = tt.err
			body := tt.body
			if body == "" {
				body = `{"username":"alice","name":"Alice"}`
			}

			rec := api.do(http.MethodPost, "/v1/profiles", "good-token", body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if !strings.Contains(rec.Body.String(), tt.wantText) {
				t.Errorf("body = %q, want it to mention %q", rec.Body.String(), tt.wantText)
			}
			if strings.Contains(rec.Body.String(), "exploded") {
				t.Error("internal error details leaked to the client")
			}
		})
	}
}

func TestGetPublicProfile(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/v1/profiles/alice", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp publicProfileResponse
	decodeBody(t, rec, &resp)
	if resp.Profile.Username != "alice" || len(resp.Links) != 1 || resp.Stats.ViewsCount != 3 {
		t.Errorf("resp = %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "secret-owner") {
		t.Error("owner identity must not be exposed")
	}

	if rec := api.do(http.MethodGet, "/v1/profiles/ghost", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown username: status = %d", rec.Code)
	}
}

func TestListProfiles(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/v1/profiles?limit=5&cursor=abc", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if api.profiles.lastQuery.Limit != 5 || api.profiles.lastQuery.Cursor != "abc" {
		t.Errorf("query = %+v", api.profiles.lastQuery)
	}
	var resp profileListResponse
	decodeBody(t, rec, &resp)
	if len(resp.Profiles) != 1 || resp.NextCursor != "next-token" {
		t.Errorf("resp = %+v", resp)
	}

	if rec := api.do(http.MethodGet, "/v1/profiles?limit=-1", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status = %d", rec.Code)
	}
}

func TestFollowRoutes(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodPost, "/v1/profiles/id/p-bob/follow", "good-token", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("follow status = %d: %s", rec.Code, rec.Body.String())
	}
	if api.follows.lastFollower != "p-alice" || api.follows.lastFollowing != "p-bob" {
		t.Errorf("follow(%s, %s)", api.follows.lastFollower, api.follows.lastFollowing)
	}

	if rec := api.do(http.MethodDelete, "/v1/profiles/id/p-bob/follow", "good-token", ""); rec.Code != http.StatusNoContent {
		t.Errorf("unfollow status = %d", rec.Code)
	}

	api.follows.followErr = domain.ErrAlreadyFollowing
	if rec := api.do(http.MethodPost, "/v1/profiles/id/p-bob/follow", "good-token", ""); rec.Code != http.StatusConflict {
		t.Errorf("duplicate follow status = %d", rec.Code)
	}

	api.follows.followErr = domain.ErrSelfFollow
	if rec := api.do(http.MethodPost, "/v1/profiles/id/p-alice/follow", "good-token", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("self follow status = %d", rec.Code)
	}

	// Session valide mais aucun profil créé
	if rec := api.do(http.MethodPost, "/v1/profiles/id/p-bob/follow", "orphan-token", ""); rec.Code != http.StatusNotFound {
		t.Errorf("caller without profile: status = %d", rec.Code)
	}
	if rec := api.do(http.MethodPost, "/v1/profiles/id/p-bob/follow", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous follow: status = %d", rec.Code)
	}
}

func TestDeleteLink(t *testing.T) {
	api := newTestAPI()

	if rec := api.do(http.MethodDelete, "/v1/me/links/l1", "good-token", ""); rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
	if rec := api.do(http.MethodDelete, "/v1/me/links/missing", "good-token", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing link: status = %d", rec.Code)
	}
}

func TestGetStats(t *testing.T) {
	api := newTestAPI()

	rec := api.do(http.MethodGet, "/v1/profiles/id/p1/stats", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp statsResponse
	decodeBody(t, rec, &resp)
	if resp.ProfileID != "p1" || resp.FollowersCount != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestReconcileStatsOwnProfileOnly(t *testing.T) {
	api := newTestAPI()

	if rec := api.do(http.MethodPost, "/v1/profiles/id/p-alice/stats/reconcile", "good-token", ""); rec.Code != http.StatusOK {
		t.Errorf("own profile: status = %d", rec.Code)
	}
	if rec := api.do(http.MethodPost, "/v1/profiles/id/p-bob/stats/reconcile", "good-token", ""); rec.Code != http.StatusForbidden {
		t.Errorf("other profile: status = %d", rec.Code)
	}
	if rec := api.do(http.MethodPost, "/v1/profiles/id/p-alice/stats/reconcile", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d", rec.Code)
	}
	if len(api.stats.reconciled) != 1 || api.stats.reconciled[0] != "p-alice" {
		t.Errorf("reconciled = %v", api.stats.reconciled)
	}
}

func TestUploadAvatar(t *testing.T) {
	api := newTestAPI()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
	hdr.Set("Content-Type", "image/png")
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n"))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/media/avatar", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if api.media.lastUpload.ContentType != "image/png" || api.media.lastUpload.Filename != "me.png" {
		t.Errorf("upload = %+v", api.media.lastUpload)
	}
	var resp mediaResponse
	decodeBody(t, rec, &resp)
	if resp.OptimizedURL != "https://cdn.example/w_400/avatars/x" {
		t.Errorf("optimized url = %q", resp.OptimizedURL)
	}
}

func TestUploadAvatarRequiresFile(t *testing.T) {
	api := newTestAPI()
	rec := api.do(http.MethodPost, "/v1/media/avatar", "good-token", `{"not":"multipart"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}
