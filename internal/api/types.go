package api

import "strings"

// ProviderRecord is one row of GET providers. Older backends report shared
// key availability as has_shared_api_key instead of has_shared_api.
type ProviderRecord struct {
	ID                         int64         `json:"id"`
	Name                       string        `json:"name"`
	Slug                       string        `json:"slug"`
	IsActive                   bool          `json:"is_active"`
	HasSharedAPI               *bool         `json:"has_shared_api,omitempty"`
	HasSharedAPIKey            *bool         `json:"has_shared_api_key,omitempty"`
	AllowSharedForNormalAdmins bool          `json:"allow_shared_for_normal_admins"`
	SharedAPIKey               string        `json:"shared_api_key"`
	Models                     []ModelRecord `json:"models,omitempty"`
}

// SharedAPIAvailable reports whether the provider supports a shared key.
func (p ProviderRecord) SharedAPIAvailable() bool {
	if p.HasSharedAPI != nil {
		return *p.HasSharedAPI
	}
	if p.HasSharedAPIKey != nil {
		return *p.HasSharedAPIKey
	}
	return false
}

// Identifier is the name used for catalog lookup: the slug when present,
// otherwise the display name.
func (p ProviderRecord) Identifier() string {
	if s := strings.TrimSpace(p.Slug); s != "" {
		return s
	}
	return strings.TrimSpace(p.Name)
}

// PersonalSettingRecord is one row of GET personal-settings/mine.
type PersonalSettingRecord struct {
	ID                  int64  `json:"id"`
	ProviderName        string `json:"provider_name,omitempty"`
	ProviderSlug        string `json:"provider_slug,omitempty"`
	UseSharedAPI        bool   `json:"use_shared_api"`
	PersonalAPIKeyValue string `json:"personal_api_key_value"`
	IsActive            bool   `json:"is_active"`
}

func (s PersonalSettingRecord) Identifier() string {
	if v := strings.TrimSpace(s.ProviderSlug); v != "" {
		return v
	}
	return strings.TrimSpace(s.ProviderName)
}

// ModelRecord is one row of GET models.
type ModelRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// PersonalSettingPayload is the body for POST/PATCH personal-settings. A nil
// APIKey leaves the stored key untouched; a pointer to "" clears it.
type PersonalSettingPayload struct {
	ID           *int64  `json:"id,omitempty"`
	ProviderName string  `json:"provider_name"`
	APIKey       *string `json:"api_key,omitempty"`
	UseSharedAPI bool    `json:"use_shared_api"`
	IsActive     bool    `json:"is_active"`
}

// SharedKeyPayload is the body for POST providers and PATCH providers/{id}.
// SharedAPIKey follows the same omit-versus-empty contract as APIKey.
type SharedKeyPayload struct {
	ProviderName string  `json:"provider_name"`
	SharedAPIKey *string `json:"shared_api_key,omitempty"`
	IsActive     bool    `json:"is_active"`
}

type togglePayload struct {
	IsActive bool `json:"is_active"`
}

// listEnvelope accepts both bare arrays and {"results": [...]} pages.
type listEnvelope[T any] struct {
	Results []T `json:"results"`
	Data    []T `json:"data"`
}
