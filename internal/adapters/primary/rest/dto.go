package rest

import (
	"time"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
)

// --- REQUÊTES ---

type linkRequest struct {
	Platform    string `json:"platform"`
	URL         string `json:"url"`
	DisplayText string `json:"display_text"`
	Icon        string `json:"icon"`
}

type createProfileRequest struct {
	Username       string        `json:"username"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Bio            string        `json:"bio"`
	Location       string        `json:"location"`
	Website        string        `json:"website"`
	ProfilePicture string        `json:"profile_picture"`
	Links          []linkRequest `json:"links"`
}

type attachLinksRequest struct {
	Links []linkRequest `json:"links"`
}

func toLinkInputs(in []linkRequest) []domain.LinkInput {
	out := make([]domain.LinkInput, 0, len(in))
	for _, l := range in {
		out = append(out, domain.LinkInput{
			Platform:    l.Platform,
			URL:         l.URL,
			DisplayText: l.DisplayText,
			Icon:        l.Icon,
		})
	}
	return out
}

// --- RÉPONSES ---

type profileResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Bio            string    `json:"bio"`
	Location       string    `json:"location"`
	Website        string    `json:"website"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

type linkResponse struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	URL         string    `json:"url"`
	DisplayText string    `json:"display_text"`
	Icon        string    `json:"icon"`
	OrderIndex  int       `json:"order_index"`
	CreatedAt   time.Time `json:"created_at"`
}

type statsResponse struct {
	ProfileID      string     `json:"profile_id"`
	ViewsCount     int64      `json:"views_count"`
	FollowersCount int64      `json:"followers_count"`
	FollowingCount int64      `json:"following_count"`
	LastViewed     *time.Time `json:"last_viewed,omitempty"`
}

type summaryResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profile_picture"`
}

type followEntryResponse struct {
	Profile    summaryResponse `json:"profile"`
	FollowedAt time.Time       `json:"followed_at"`
}

type publicProfileResponse struct {
	Profile profileResponse `json:"profile"`
	Links   []linkResponse  `json:"links"`
	Stats   statsResponse   `json:"stats"`
}

type profileListResponse struct {
	Profiles   []profileResponse `json:"profiles"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type followResponse struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type relationResponse struct {
	IsFollowing  bool `json:"is_following"`
	IsFollowedBy bool `json:"is_followed_by"`
}

type mediaResponse struct {
	PublicID     string `json:"public_id"`
	URL          string `json:"url"`
	OptimizedURL string `json:"optimized_url"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Format       string `json:"format"`
}

// L'OwnerID n'est jamais exposé publiquement
func toProfileResponse(p *domain.Profile) profileResponse {
	return profileResponse{
		ID:             p.ID,
		Username:       p.Username,
		Name:           p.Name,
		Description:    p.Description,
		Bio:            p.Bio,
		Location:       p.Location,
		Website:        p.Website,
		ProfilePicture: p.ProfilePicture,
		CreatedAt:      p.CreatedAt,
	}
}

func toLinkResponses(links []domain.SocialLink) []linkResponse {
	out := make([]linkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, linkResponse{
			ID:          l.ID,
			Platform:    l.Platform,
			URL:         l.URL,
			DisplayText: l.DisplayText,
			Icon:        l.Icon,
			OrderIndex:  l.OrderIndex,
			CreatedAt:   l.CreatedAt,
		})
	}
	return out
}

func toStatsResponse(s domain.ProfileStats) statsResponse {
	return statsResponse{
		ProfileID:      s.ProfileID,
		ViewsCount:     s.ViewsCount,
		FollowersCount: s.FollowersCount,
		FollowingCount: s.FollowingCount,
		LastViewed:     s.LastViewed,
	}
}

func toSummaryResponse(s domain.ProfileSummary) summaryResponse {
	return summaryResponse{
		ID:             s.ID,
		Username:       s.Username,
		Name:           s.Name,
		ProfilePicture: s.ProfilePicture,
	}
}

func toFollowEntries(entries []domain.FollowEntry) []followEntryResponse {
	out := make([]followEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, followEntryResponse{
			Profile:    toSummaryResponse(e.Profile),
			FollowedAt: e.FollowedAt,
		})
	}
	return out
}
