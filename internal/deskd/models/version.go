package models

import "time"

// Version is an append-only history row written on every successful
// generation or regeneration.
type Version struct {
	ID              string    `json:"id"`
	AppID           string    `json:"appId"`
	VersionNumber   int       `json:"versionNumber"`
	HTMLStoragePath string    `json:"htmlStoragePath"`
	Prompt          string    `json:"prompt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// VersionWithCurrent flags the version whose content the app currently serves
type VersionWithCurrent struct {
	Version
	IsCurrent bool `json:"isCurrent"`
}

// ListVersionsResponse is the response for listing versions
type ListVersionsResponse struct {
	Versions []VersionWithCurrent `json:"versions"`
	Total    int                  `json:"total"`
}

// RestoreVersionResponse is the response for restoring a version
type RestoreVersionResponse struct {
	App     App     `json:"app"`
	Version Version `json:"version"`
}

// MarkCurrent annotates versions with isCurrent. A version is current when its
// storage reference equals the app's, regardless of its number.
func MarkCurrent(versions []Version, currentPath *string) []VersionWithCurrent {
	out := make([]VersionWithCurrent, 0, len(versions))
	for _, v := range versions {
		out = append(out, VersionWithCurrent{
			Version:   v,
			IsCurrent: currentPath != nil && v.HTMLStoragePath == *currentPath,
		})
	}
	return out
}
