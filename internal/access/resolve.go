// Package access derives the effective access state of a provider from its
// capabilities, the viewer's credential records and the viewer's role. All
// functions are pure.
package access

import "github.com/joshuadavidthomas/aikeys/internal/models"

// Resolve computes the EffectiveAccessState for one provider.
//
// personal and shared may be nil. The shared key is only ever the effective
// key for a super admin who opted into it; any other viewer always sees their
// own key as effective because they cannot read the shared secret.
func Resolve(provider models.ProviderDescriptor, personal *models.PersonalCredentialRecord, shared *models.SharedCredentialRecord, superAdmin bool) models.EffectiveAccessState {
	caps := provider.Capabilities
	canUseShared := caps.HasSharedAPI && (superAdmin || caps.AllowNormalAdminsSharedAPI)

	optedIn := personal != nil && personal.UseSharedAPI
	useShared := canUseShared && optedIn
	sharedEffective := useShared && superAdmin

	var effectiveKey string
	var isActive bool
	if sharedEffective {
		if shared != nil {
			effectiveKey = shared.SharedAPIKeyValue
			isActive = shared.IsActive
		}
	} else if personal != nil {
		effectiveKey = personal.PersonalAPIKeyValue
		isActive = personal.IsActive
	}
	keyPresent := models.IsKeyPresent(effectiveKey)

	return models.EffectiveAccessState{
		CanUseShared:        canUseShared,
		UseShared:           useShared,
		EffectiveKeyPresent: keyPresent,
		IsActive:            isActive,
		AccessStatus:        status(isActive, useShared, superAdmin, keyPresent),
	}
}

// status applies the ordered status rules. Activation dominates key
// presence: an active provider without a key is no-key, never disabled.
func status(isActive, useShared, superAdmin, keyPresent bool) models.AccessStatus {
	switch {
	case !isActive:
		return models.AccessDisabled
	case useShared && superAdmin && keyPresent:
		return models.AccessShared
	case !useShared && keyPresent:
		return models.AccessPersonal
	case useShared && !superAdmin && keyPresent:
		return models.AccessPersonal
	default:
		return models.AccessNoKey
	}
}

// ResolveCredential is Resolve over the merged credential of a provider.
func ResolveCredential(provider models.ProviderDescriptor, c models.Credential, superAdmin bool) models.EffectiveAccessState {
	if c == nil {
		return Resolve(provider, nil, nil, superAdmin)
	}
	return Resolve(provider, c.PersonalRecord(), c.SharedRecord(), superAdmin)
}
