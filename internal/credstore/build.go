// Package credstore holds the session's view of provider credentials: the
// projection of the two fetched record sets and the operator's locally held
// key values.
package credstore

import (
	"sort"

	"github.com/joshuadavidthomas/aikeys/internal/api"
	"github.com/joshuadavidthomas/aikeys/internal/catalog"
	"github.com/joshuadavidthomas/aikeys/internal/models"
)

// Snapshot is one fetch generation's projection of the backend records.
// It is rebuilt in full on every fetch and never patched.
type Snapshot struct {
	Providers []models.ProviderDescriptor
	Personal  map[string]models.PersonalCredentialRecord
	Shared    map[string]models.SharedCredentialRecord
}

// Build projects fetched records into a Snapshot. Providers without catalog
// metadata are dropped from the displayed set. When several source records
// resolve to the same frontend id the record iterated last wins.
func Build(providers []api.ProviderRecord, settings []api.PersonalSettingRecord, modelRecs []api.ModelRecord) Snapshot {
	snap := Snapshot{
		Personal: make(map[string]models.PersonalCredentialRecord),
		Shared:   make(map[string]models.SharedCredentialRecord),
	}

	modelsByID := groupModels(modelRecs)
	index := make(map[string]int)

	for _, p := range providers {
		for _, fid := range catalog.ResolveFrontendIDs(p.Identifier()) {
			meta, ok := catalog.Metadata(fid)
			if !ok {
				continue
			}
			backendID := p.ID
			desc := models.ProviderDescriptor{
				FrontendID:  fid,
				BackendName: meta.Backend,
				BackendID:   &backendID,
				Name:        meta.Name,
				Icon:        meta.Icon,
				Description: meta.Description,
				APIKeyLabel: meta.APIKeyLabel,
				Capabilities: models.Capabilities{
					HasSharedAPI:               p.SharedAPIAvailable(),
					AllowNormalAdminsSharedAPI: p.AllowSharedForNormalAdmins,
				},
				Models: mergeModels(modelsByID[fid], p.Models, fid),
			}
			if i, seen := index[fid]; seen {
				snap.Providers[i] = desc
			} else {
				index[fid] = len(snap.Providers)
				snap.Providers = append(snap.Providers, desc)
			}
			snap.Shared[fid] = models.SharedCredentialRecord{
				ID:                &backendID,
				SharedAPIKeyValue: p.SharedAPIKey,
				IsActive:          p.IsActive,
			}
		}
	}

	for _, s := range settings {
		for _, fid := range catalog.ResolveFrontendIDs(s.Identifier()) {
			rec := models.PersonalCredentialRecord{
				UseSharedAPI:        s.UseSharedAPI,
				PersonalAPIKeyValue: s.PersonalAPIKeyValue,
				IsActive:            s.IsActive,
			}
			if s.ID != 0 {
				rec.ID = models.Int64Ptr(s.ID)
			}
			snap.Personal[fid] = rec
		}
	}

	sort.SliceStable(snap.Providers, func(i, j int) bool {
		return snap.Providers[i].Name < snap.Providers[j].Name
	})
	return snap
}

func groupModels(recs []api.ModelRecord) map[string][]models.ModelEntry {
	out := make(map[string][]models.ModelEntry)
	for _, m := range recs {
		for _, fid := range catalog.ResolveFrontendIDs(m.Provider) {
			out[fid] = append(out[fid], models.ModelEntry{ID: m.ID, Name: m.Name, Provider: fid})
		}
	}
	return out
}

// mergeModels combines models listed separately with models embedded in the
// provider record, dropping duplicate ids.
func mergeModels(listed []models.ModelEntry, embedded []api.ModelRecord, fid string) []models.ModelEntry {
	if len(listed) == 0 && len(embedded) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(listed)+len(embedded))
	out := make([]models.ModelEntry, 0, len(listed)+len(embedded))
	for _, m := range listed {
		if !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	for _, m := range embedded {
		if !seen[m.ID] {
			seen[m.ID] = true
			out = append(out, models.ModelEntry{ID: m.ID, Name: m.Name, Provider: fid})
		}
	}
	return out
}

// Descriptor looks up a provider by frontend id.
func (s Snapshot) Descriptor(frontendID string) (models.ProviderDescriptor, bool) {
	for _, d := range s.Providers {
		if d.FrontendID == frontendID {
			return d, true
		}
	}
	return models.ProviderDescriptor{}, false
}

// BackendID returns the backend's numeric provider id, if the provider has a
// backend row.
func (s Snapshot) BackendID(frontendID string) (int64, bool) {
	d, ok := s.Descriptor(frontendID)
	if !ok || d.BackendID == nil {
		return 0, false
	}
	return *d.BackendID, true
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Providers: append([]models.ProviderDescriptor(nil), s.Providers...),
		Personal:  make(map[string]models.PersonalCredentialRecord, len(s.Personal)),
		Shared:    make(map[string]models.SharedCredentialRecord, len(s.Shared)),
	}
	for k, v := range s.Personal {
		out.Personal[k] = v
	}
	for k, v := range s.Shared {
		out.Shared[k] = v
	}
	return out
}
