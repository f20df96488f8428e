package domain

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- ENTITÉ ---

type Profile struct {
	ID             string // Généré par la base (gen_random_uuid)
	OwnerID        string // Identité opaque fournie par l'Auth Provider
	Username       string
	Name           string
	Description    string // Tagline courte
	Bio            string
	Location       string
	Website        string
	ProfilePicture string // URL publique (Cloudinary)
	CreatedAt      time.Time
}

// ProfileSummary est la projection légère utilisée dans les listes (followers, suggestions)
type ProfileSummary struct {
	ID             string
	Username       string
	Name           string
	ProfilePicture string
}

// Summary réduit le profil à ses champs publics de liste
func (p *Profile) Summary() ProfileSummary {
	return ProfileSummary{
		ID:             p.ID,
		Username:       p.Username,
		Name:           p.Name,
		ProfilePicture: p.ProfilePicture,
	}
}

// PublicProfile agrège ce qu'affiche la page publique /{username}
type PublicProfile struct {
	Profile *Profile
	Links   []SocialLink
	Stats   ProfileStats
}

// --- FACTORY (CONSTRUCTEUR) ---

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,30}$`)

// NewProfile valide les invariants d'un profil avant insertion.
// L'ID et CreatedAt restent vides : c'est la base qui les attribue.
func NewProfile(ownerID, username, name string) (*Profile, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, invalid("owner_id", "is required")
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalid("username", "is required")
	}
	if !usernamePattern.MatchString(username) {
		return nil, invalid("username", "must be 3-30 characters of letters, digits, '_' or '.'")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}

	return &Profile{
		OwnerID:  ownerID,
		Username: username,
		Name:     name,
	}, nil
}

// --- COMPORTEMENTS ---

// SetDetails applique les champs optionnels (tagline, bio, liens)
func (p *Profile) SetDetails(description, bio, location, website, picture string) error {
	website = strings.TrimSpace(website)
	if website != "" && !isHTTPURL(website) {
		return invalid("website", "must be an absolute http(s) URL")
	}
	picture = strings.TrimSpace(picture)
	if picture != "" && !isHTTPURL(picture) {
		return invalid("profile_picture", "must be an absolute http(s) URL")
	}

	p.Description = strings.TrimSpace(description)
	p.Bio = strings.TrimSpace(bio)
	p.Location = strings.TrimSpace(location)
	p.Website = website
	p.ProfilePicture = picture
	return nil
}

// --- VALIDATEURS INTERNES ---

// NormalizeUsername donne la clé de comparaison (unicité insensible à la casse)
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateID vérifie qu'un identifiant est bien un UUID avant d'interroger la base
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid(field, "is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return invalid(field, "must be a valid UUID")
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
