package domain

import "time"

// FollowEdge représente un lien dirigé : Follower -> Follows -> Following
type FollowEdge struct {
	ID          string
	FollowerID  string
	FollowingID string
	CreatedAt   time.Time
}

// FollowEntry est une ligne de liste followers/following (jointure à la lecture)
type FollowEntry struct {
	Profile    ProfileSummary
	FollowedAt time.Time
}

// RelationStatus est utilisé pour l'UI (bouton Follow / "vous suit")
type RelationStatus struct {
	IsFollowing  bool // Actor suit Target
	IsFollowedBy bool // Target suit Actor
}

// ValidateFollow vérifie les identifiants d'une relation avant écriture
func ValidateFollow(followerID, followingID string) error {
	if err := ValidateID("follower_id", followerID); err != nil {
		return err
	}
	if err := ValidateID("following_id", followingID); err != nil {
		return err
	}
	if followerID == followingID {
		return ErrSelfFollow
	}
	return nil
}
