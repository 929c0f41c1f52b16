package models

import "strings"

// MaskSentinel is the placeholder the admin API returns in place of a stored
// key. It marks "a key exists" and is never a usable secret.
const MaskSentinel = "********"

type Scope string

const (
	ScopePersonal Scope = "personal"
	ScopeShared   Scope = "shared"
)

func (s Scope) Valid() bool {
	return s == ScopePersonal || s == ScopeShared
}

func ParseScope(s string) (Scope, bool) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopePersonal:
		return ScopePersonal, true
	case ScopeShared:
		return ScopeShared, true
	default:
		return "", false
	}
}

type AccessStatus string

const (
	AccessShared   AccessStatus = "shared"
	AccessPersonal AccessStatus = "personal"
	AccessNoKey    AccessStatus = "no-key"
	AccessNoAccess AccessStatus = "no-access"
	AccessDisabled AccessStatus = "disabled"
)

// AllAccessStatuses lists every status a resolver may produce.
var AllAccessStatuses = []AccessStatus{AccessShared, AccessPersonal, AccessNoKey, AccessNoAccess, AccessDisabled}

type Capabilities struct {
	HasSharedAPI               bool `json:"has_shared_api" yaml:"has_shared_api"`
	AllowNormalAdminsSharedAPI bool `json:"allow_normal_admins_shared_api" yaml:"allow_normal_admins_shared_api"`
}

type ModelEntry struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`
}

// ProviderDescriptor joins catalog display metadata with the backend's view
// of a provider. BackendID is nil when the backend has no provider row yet.
type ProviderDescriptor struct {
	FrontendID   string       `json:"id" yaml:"id"`
	BackendName  string       `json:"backend_name" yaml:"backend_name"`
	BackendID    *int64       `json:"backend_id,omitempty" yaml:"backend_id,omitempty"`
	Name         string       `json:"name" yaml:"name"`
	Icon         string       `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	APIKeyLabel  string       `json:"api_key_label,omitempty" yaml:"api_key_label,omitempty"`
	Capabilities Capabilities `json:"capabilities" yaml:"capabilities"`
	Models       []ModelEntry `json:"models,omitempty" yaml:"models,omitempty"`
}

func (d ProviderDescriptor) ModelCount() int { return len(d.Models) }

// PersonalCredentialRecord is one operator's settings for one provider. ID is
// nil until the record has been persisted.
type PersonalCredentialRecord struct {
	ID                  *int64 `json:"id,omitempty"`
	UseSharedAPI        bool   `json:"use_shared_api"`
	PersonalAPIKeyValue string `json:"-"`
	IsActive            bool   `json:"is_active"`
}

// SharedCredentialRecord is the organization-wide credential for a provider.
type SharedCredentialRecord struct {
	ID                *int64 `json:"id,omitempty"`
	SharedAPIKeyValue string `json:"-"`
	IsActive          bool   `json:"is_active"`
}

// EffectiveAccessState is derived per render and never persisted.
type EffectiveAccessState struct {
	CanUseShared        bool         `json:"can_use_shared" yaml:"can_use_shared"`
	UseShared           bool         `json:"use_shared" yaml:"use_shared"`
	EffectiveKeyPresent bool         `json:"effective_key_present" yaml:"effective_key_present"`
	IsActive            bool         `json:"is_active" yaml:"is_active"`
	AccessStatus        AccessStatus `json:"access_status" yaml:"access_status"`
}

// ActiveScope is the scope shown as in effect. It is never empty.
func (s EffectiveAccessState) ActiveScope() Scope {
	if s.UseShared {
		return ScopeShared
	}
	return ScopePersonal
}

// IsKeyPresent reports whether v is a usable key: non-blank and not the mask.
func IsKeyPresent(v string) bool {
	t := strings.TrimSpace(v)
	return t != "" && t != MaskSentinel
}

func Int64Ptr(v int64) *int64 { return &v }
