package access

import "github.com/joshuadavidthomas/aikeys/internal/models"

// Label is the short badge text for a status. Disabled providers carry no
// label; their activation toggle speaks for them.
func Label(s models.AccessStatus) string {
	switch s {
	case models.AccessShared:
		return "Shared key"
	case models.AccessPersonal:
		return "Personal key"
	case models.AccessNoKey:
		return "No key"
	case models.AccessNoAccess:
		return "No access"
	default:
		return ""
	}
}

// Describe is a one-line explanation of the state, for detail views.
func Describe(st models.EffectiveAccessState) string {
	switch st.AccessStatus {
	case models.AccessDisabled:
		return "Provider is disabled"
	case models.AccessNoAccess:
		return "You do not have permission to manage AI providers"
	case models.AccessShared:
		return "Using the organization's shared key"
	case models.AccessPersonal:
		if st.UseShared {
			return "Opted into the shared key; your own key is shown"
		}
		return "Using your personal key"
	default:
		if st.UseShared {
			return "Opted into the shared key, but no key is available"
		}
		return "No API key configured"
	}
}
