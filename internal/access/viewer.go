package access

import "github.com/joshuadavidthomas/aikeys/internal/models"

// ManagePermission is the permission a viewer needs to see or change
// provider credentials at all.
const ManagePermission = "ai_settings.manage"

// Viewer is the permission primitive consumed by the resolver. Role and
// permission data come from outside this package.
type Viewer interface {
	IsSuperAdmin() bool
	HasPermission(permission string) bool
}

// ResolveForViewer resolves a provider for v. A viewer without
// ManagePermission gets no-access and nothing else is derived.
func ResolveForViewer(provider models.ProviderDescriptor, c models.Credential, v Viewer) models.EffectiveAccessState {
	if v == nil || !v.HasPermission(ManagePermission) {
		return models.EffectiveAccessState{AccessStatus: models.AccessNoAccess}
	}
	return ResolveCredential(provider, c, v.IsSuperAdmin())
}

// StaticViewer is a fixed Viewer.
type StaticViewer struct {
	Super       bool
	Permissions []string
}

func (v StaticViewer) IsSuperAdmin() bool { return v.Super }

func (v StaticViewer) HasPermission(permission string) bool {
	if v.Super {
		return true
	}
	for _, p := range v.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
