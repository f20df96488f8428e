package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

const (
	maxJSONBody         = 1 << 20 // 1 MiB
	defaultMaxUpload    = 5 << 20
	multipartOverhead   = 1 << 20
	avatarOptimizedSize = 400
)

// Handler expose les use-cases du service en JSON
type Handler struct {
	profiles  ports.ProfileService
	follows   ports.FollowService
	stats     ports.StatsService
	media     ports.MediaService
	maxUpload int64
}

func NewHandler(
	profiles ports.ProfileService,
	follows ports.FollowService,
	stats ports.StatsService,
	media ports.MediaService,
	maxUpload int64,
) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{
		profiles:  profiles,
		follows:   follows,
		stats:     stats,
		media:     media,
		maxUpload: maxUpload,
	}
}

// Routes monte toutes les routes sur un ServeMux (patterns Go 1.22)
// et applique l'auth puis le log d'accès.
func (h *Handler) Routes(verifier ports.SessionVerifier) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	// Profils
	mux.HandleFunc("GET /v1/profiles", h.listProfiles)
	mux.HandleFunc("POST /v1/profiles", h.createProfile)
	mux.HandleFunc("GET /v1/profiles/{username}", h.getPublicProfile)
	mux.HandleFunc("GET /v1/me/profile", h.getMyProfile)

	// Liens sociaux
	mux.HandleFunc("POST /v1/me/links", h.attachLinks)
	mux.HandleFunc("DELETE /v1/me/links/{linkID}", h.deleteLink)

	// Media
	mux.HandleFunc("POST /v1/media/avatar", h.uploadAvatar)

	// Stats
	mux.HandleFunc("GET /v1/profiles/id/{id}/stats", h.getStats)
	mux.HandleFunc("POST /v1/profiles/id/{id}/stats/reconcile", h.reconcileStats)

	// Graphe social
	mux.HandleFunc("GET /v1/profiles/id/{id}/followers", h.listFollowers)
	mux.HandleFunc("GET /v1/profiles/id/{id}/following", h.listFollowing)
	mux.HandleFunc("GET /v1/profiles/id/{id}/relation", h.getRelation)
	mux.HandleFunc("POST /v1/profiles/id/{id}/follow", h.follow)
	mux.HandleFunc("DELETE /v1/profiles/id/{id}/follow", h.unfollow)
	mux.HandleFunc("GET /v1/profiles/id/{id}/suggestions", h.suggestions)

	return LoggingMiddleware(AuthMiddleware(verifier)(mux))
}

// --- PROFILS ---

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}

	profiles, next, err := h.profiles.ListProfiles(r.Context(), ports.ListProfilesQuery{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := profileListResponse{Profiles: make([]profileResponse, 0, len(profiles)), NextCursor: next}
	for _, p := range profiles {
		resp.Profiles = append(resp.Profiles, toProfileResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createProfile(w http.ResponseWriter, r *http.Request) {
	owner := ForContext(r.Context())
	if owner == "" {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	var req createProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := h.profiles.CreateProfile(r.Context(), ports.CreateProfileCmd{
		OwnerID:        owner, // Jamais lu depuis le body
		Username:       req.Username,
		Name:           req.Name,
		Description:    req.Description,
		Bio:            req.Bio,
		Location:       req.Location,
		Website:        req.Website,
		ProfilePicture: req.ProfilePicture,
		Links:          toLinkInputs(req.Links),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileResponse(profile))
}

func (h *Handler) getPublicProfile(w http.ResponseWriter, r *http.Request) {
	page, err := h.profiles.GetPublicProfile(r.Context(), r.PathValue("username"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, publicProfileResponse{
		Profile: toProfileResponse(page.Profile),
		Links:   toLinkResponses(page.Links),
		Stats:   toStatsResponse(page.Stats),
	})
}

func (h *Handler) getMyProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.callerProfile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(profile))
}

// --- LIENS ---

func (h *Handler) attachLinks(w http.ResponseWriter, r *http.Request) {
	profile, err := h.callerProfile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req attachLinksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	links, err := h.profiles.AttachLinks(r.Context(), profile.ID, toLinkInputs(req.Links))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLinkResponses(links))
}

func (h *Handler) deleteLink(w http.ResponseWriter, r *http.Request) {
	profile, err := h.callerProfile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.profiles.DeleteLink(r.Context(), profile.ID, r.PathValue("linkID")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- MEDIA ---

func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	owner := ForContext(r.Context())
	if owner == "" {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, domain.ErrUploadTooLarge)
			return
		}
		writeError(w, r, &domain.ValidationError{Field: "file", Reason: "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	// +1 pour que le service détecte le dépassement
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		writeError(w, r, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	asset, err := h.media.UploadAvatar(r.Context(), owner, domain.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	optimized := h.media.OptimizedURL(asset.PublicID, domain.ImageOptions{
		Width:  avatarOptimizedSize,
		Height: avatarOptimizedSize,
		Format: "webp",
	})
	writeJSON(w, http.StatusCreated, mediaResponse{
		PublicID:     asset.PublicID,
		URL:          asset.URL,
		OptimizedURL: optimized,
		Width:        asset.Width,
		Height:       asset.Height,
		Format:       asset.Format,
	})
}

// --- STATS ---

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// Un utilisateur ne peut réparer que les compteurs de son propre profil
func (h *Handler) reconcileStats(w http.ResponseWriter, r *http.Request) {
	me, err := h.callerProfile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if me.ID != r.PathValue("id") {
		writeError(w, r, domain.ErrForbidden)
		return
	}
	stats, err := h.stats.ReconcileStats(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// --- GRAPHE SOCIAL ---

func (h *Handler) listFollowers(w http.ResponseWriter, r *http.Request) {
	entries, err := h.follows.ListFollowers(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFollowEntries(entries))
}

func (h *Handler) listFollowing(w http.ResponseWriter, r *http.Request) {
	entries, err := h.follows.ListFollowing(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFollowEntries(entries))
}

func (h *Handler) getRelation(w http.ResponseWriter, r *http.Request) {
	me, err := h.callerProfile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rel, err := h.follows.GetRelation(r.Context(), me.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, relationResponse{IsFollowing: rel.IsFollowing, IsFollowedBy: rel.IsFollowedBy})
}

func (h *Handler) follow(w http.ResponseWriter, r *http.Request) {
	me, err := h.callerProfile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	edge, err := h.follows.Follow(r.Context(), me.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, followResponse{
		FollowerID:  edge.FollowerID,
		FollowingID: edge.FollowingID,
		CreatedAt:   edge.CreatedAt,
	})
}

func (h *Handler) unfollow(w http.ResponseWriter, r *http.Request) {
	me, err := h.callerProfile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.follows.Unfollow(r.Context(), me.ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := h.follows.SuggestProfiles(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toSummaryResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- HELPERS ---

// callerProfile résout le profil de la session courante
func (h *Handler) callerProfile(ctx context.Context) (*domain.Profile, error) {
	owner := ForContext(ctx)
	if owner == "" {
		return nil, domain.ErrUnauthenticated
	}
	return h.profiles.GetProfileByOwner(ctx, owner)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, &domain.ValidationError{Field: key, Reason: "must be a non-negative integer"}
	}
	return v, nil
}
