package model

// Caller identifies who issued a request, as established by the auth layer.
type Caller struct {
	UserID      string
	SystemAdmin bool
}

// Capability is the set of roles a caller holds for one session.
type Capability uint8

const (
	CapabilitySystemAdmin Capability = 1 << iota
	CapabilityCreator
	CapabilityDesignatedEditor
)

// CanEdit gates every team, position, attendance and lineup mutation.
func (c Capability) CanEdit() bool {
	return c&(CapabilitySystemAdmin|CapabilityCreator|CapabilityDesignatedEditor) != 0
}

// CanManageEditors gates changes to the designated editor set.
func (c Capability) CanManageEditors() bool {
	return c&(CapabilitySystemAdmin|CapabilityCreator) != 0
}
