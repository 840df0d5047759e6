package store

import (
	"encoding/json"
	"fmt"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/store/keys"
)

// ProfileBatchLimit caps the ids resolved in one GetProfiles call.
// Mirrors the backend's IN-query ceiling; callers chunk above it.
const ProfileBatchLimit = 10

// SaveProfile upserts a user profile document.
func SaveProfile(p *models.Profile) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("profile id required")
	}
	k, err := keys.GenProfileKey(p.ID)
	if err != nil {
		return err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return SaveKey(k, b)
}

// GetProfile returns one profile.
func GetProfile(userID string) (*models.Profile, error) {
	k, err := keys.GenProfileKey(userID)
	if err != nil {
		return nil, err
	}
	raw, err := GetKey(k)
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("corrupt profile %s: %w", userID, err)
	}
	return &p, nil
}

// GetProfiles resolves up to ProfileBatchLimit ids in one call. Unknown
// ids are simply absent from the result; callers with more ids chunk
// through the session profile fetcher, which also dedupes and caches.
func GetProfiles(ids []string) (map[string]*models.Profile, error) {
	if len(ids) > ProfileBatchLimit {
		return nil, fmt.Errorf("profile batch of %d exceeds limit %d", len(ids), ProfileBatchLimit)
	}
	out := make(map[string]*models.Profile, len(ids))
	for _, id := range ids {
		p, err := GetProfile(id)
		if err != nil {
			if IsNotFound(err) {
				logger.Debug("profile_missing", "user", id)
				continue
			}
			return nil, err
		}
		out[p.ID] = p
	}
	return out, nil
}
