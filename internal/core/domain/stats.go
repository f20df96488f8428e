package domain

import "time"

// ProfileStats est un cache dénormalisé, pas une source de vérité.
// La vérité pour les compteurs de follow reste la table follows.
type ProfileStats struct {
	ProfileID      string
	ViewsCount     int64
	FollowersCount int64
	FollowingCount int64
	LastViewed     *time.Time // nil tant que personne n'a vu le profil
}

// ZeroStats est la valeur par défaut quand aucune ligne n'existe encore
func ZeroStats(profileID string) ProfileStats {
	return ProfileStats{ProfileID: profileID}
}
