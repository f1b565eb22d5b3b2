package access

import "mak3-crm/internal/models"

// Actor is the authenticated caller as seen by the access layer. It is built
// once per request by the auth middleware and never mutated afterwards.
type Actor struct {
	ID        uint
	Role      models.UserRole
	PartnerID *uint
}

// ActorFromUser derives an Actor from a persisted user row.
func ActorFromUser(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role, PartnerID: u.PartnerID}
}

// PartnerAnchor returns the partner id this actor's deal ownership is checked
// against: the linked partner when present, or the actor's own id when the
// actor is the partner itself.
func (a Actor) PartnerAnchor() *uint {
	if a.PartnerID != nil {
		return a.PartnerID
	}
	if a.Role == models.RolePartner {
		id := a.ID
		return &id
	}
	return nil
}
