package domain

import (
	"strings"
	"time"
)

type SocialLink struct {
	ID          string
	ProfileID   string
	Platform    string // "twitter", "github", ... (chaîne libre)
	URL         string
	DisplayText string
	Icon        string
	OrderIndex  int // Indice d'affichage, pas unique
	CreatedAt   time.Time
}

// LinkInput est la saisie brute d'un lien (formulaire)
type LinkInput struct {
	Platform    string
	URL         string
	DisplayText string
	Icon        string
}

// Platform décrit une plateforme connue du catalogue
type Platform struct {
	Key         string
	DisplayText string
	Icon        string
}

// Platforms est le catalogue proposé par le formulaire de profil
var Platforms = []Platform{
	{Key: "twitter", DisplayText: "Twitter", Icon: "🐦"},
	{Key: "instagram", DisplayText: "Instagram", Icon: "📸"},
	{Key: "linkedin", DisplayText: "LinkedIn", Icon: "💼"},
	{Key: "github", DisplayText: "GitHub", Icon: "💻"},
	{Key: "youtube", DisplayText: "YouTube", Icon: "📺"},
	{Key: "tiktok", DisplayText: "TikTok", Icon: "🎵"},
	{Key: "discord", DisplayText: "Discord", Icon: "🎮"},
	{Key: "website", DisplayText: "Website", Icon: "🌐"},
}

// LookupPlatform cherche une plateforme du catalogue (insensible à la casse)
func LookupPlatform(key string) (Platform, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, p := range Platforms {
		if p.Key == key {
			return p, true
		}
	}
	return Platform{}, false
}

// BuildLinks transforme la saisie en liens persistables.
// Les entrées sans plateforme ou sans URL sont ignorées silencieusement.
// OrderIndex reprend la position dans la saisie d'origine (avant filtrage).
func BuildLinks(profileID string, inputs []LinkInput) []SocialLink {
	links := make([]SocialLink, 0, len(inputs))
	for i, in := range inputs {
		platform := strings.TrimSpace(in.Platform)
		rawURL := strings.TrimSpace(in.URL)
		if platform == "" || rawURL == "" {
			continue
		}

		display := strings.TrimSpace(in.DisplayText)
		icon := strings.TrimSpace(in.Icon)
		if known, ok := LookupPlatform(platform); ok {
			if display == "" {
				display = known.DisplayText
			}
			if icon == "" {
				icon = known.Icon
			}
		}
		if display == "" {
			display = platform
		}

		links = append(links, SocialLink{
			ProfileID:   profileID,
			Platform:    platform,
			URL:         rawURL,
			DisplayText: display,
			Icon:        icon,
			OrderIndex:  i,
		})
	}
	return links
}
