package models

// Credential is the per-provider merge of the two credential scopes. The
// concrete types are PersonalOnly, SharedOnly and Both; a provider with
// neither record has a nil Credential.
type Credential interface {
	PersonalRecord() *PersonalCredentialRecord
	SharedRecord() *SharedCredentialRecord
	credential()
}

type PersonalOnly struct {
	Personal PersonalCredentialRecord
}

type SharedOnly struct {
	Shared SharedCredentialRecord
}

type Both struct {
	Personal PersonalCredentialRecord
	Shared   SharedCredentialRecord
}

func (c PersonalOnly) PersonalRecord() *PersonalCredentialRecord { p := c.Personal; return &p }
func (c PersonalOnly) SharedRecord() *SharedCredentialRecord     { return nil }
func (PersonalOnly) credential()                                 {}

func (c SharedOnly) PersonalRecord() *PersonalCredentialRecord { return nil }
func (c SharedOnly) SharedRecord() *SharedCredentialRecord     { s := c.Shared; return &s }
func (SharedOnly) credential()                                 {}

func (c Both) PersonalRecord() *PersonalCredentialRecord { p := c.Personal; return &p }
func (c Both) SharedRecord() *SharedCredentialRecord     { s := c.Shared; return &s }
func (Both) credential()                                 {}

// NewCredential builds the tagged union from optional records. It returns nil
// when both are nil.
func NewCredential(personal *PersonalCredentialRecord, shared *SharedCredentialRecord) Credential {
	switch {
	case personal != nil && shared != nil:
		return Both{Personal: *personal, Shared: *shared}
	case personal != nil:
		return PersonalOnly{Personal: *personal}
	case shared != nil:
		return SharedOnly{Shared: *shared}
	default:
		return nil
	}
}
