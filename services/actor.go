package services

// Role is the caller role supplied by the gateway.
type Role string

const (
	RoleStudent   Role = "student"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Actor is the authenticated caller of an engine operation. Identity is trusted as given.
type Actor struct {
	ID    string
	Roles []Role
}

func (a Actor) Has(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanOrganize reports whether the actor may run organizer operations.
func (a Actor) CanOrganize() bool {
	return a.Has(RoleOrganizer) || a.Has(RoleAdmin)
}

// canManage reports whether the actor may administer the given organizer's event.
func (a Actor) canManage(organizerID string) bool {
	if a.Has(RoleAdmin) {
		return true
	}
	return a.Has(RoleOrganizer) && a.ID == organizerID
}
