package access

import "mak3-crm/internal/models"

type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Resource string

const (
	ResourceContact Resource = "contact"
	ResourceDeal    Resource = "deal"
)

// Ownership is the persisted ownership context of a resource instance, loaded
// from the store immediately before the decision is made.
type Ownership struct {
	AssignedToID *uint
	PartnerID    *uint
}

type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision             { return Decision{Allowed: true} }
func Deny(reason string) Decision { return Decision{Reason: reason} }

const denyDefault = "insufficient role/ownership"

// unrestricted maps (resource, action) to the roles allowed regardless of
// ownership. Every other role falls through to the ownership predicates below;
// delete never falls through.
var unrestricted = map[Resource]map[Action][]models.UserRole{
	ResourceContact: {
		ActionRead:   {models.RoleAdmin, models.RoleManager},
		ActionUpdate: {models.RoleAdmin, models.RoleManager},
		ActionDelete: {models.RoleAdmin},
	},
	ResourceDeal: {
		ActionRead:   {models.RoleAdmin, models.RoleManager},
		ActionUpdate: {models.RoleAdmin, models.RoleManager},
		ActionDelete: {models.RoleAdmin, models.RoleManager},
	},
}

// Authorize decides whether actor may perform action on a resource with the
// given ownership context. Pure function; it never errors, only denies.
func Authorize(actor Actor, action Action, resource Resource, own Ownership) Decision {
	if actor.Role == models.RoleAdmin {
		return Allow()
	}

	for _, role := range unrestricted[resource][action] {
		if actor.Role == role {
			return Allow()
		}
	}

	// удаление — только по таблице ролей, владение не помогает
	if action == ActionDelete {
		return Deny(denyDefault)
	}

	switch actor.Role {
	case models.RolePartner:
		if resource == ResourceContact {
			// партнёр сам является якорем partnerId своих контактов
			if own.PartnerID != nil && *own.PartnerID == actor.ID {
				return Allow()
			}
			return Deny(denyDefault)
		}
		if anchor := actor.PartnerAnchor(); anchor != nil && own.PartnerID != nil && *own.PartnerID == *anchor {
			return Allow()
		}
	case models.RolePartnerEmployee:
		if actor.PartnerID != nil && own.PartnerID != nil && *own.PartnerID == *actor.PartnerID {
			return Allow()
		}
	default:
		if own.AssignedToID != nil && *own.AssignedToID == actor.ID {
			return Allow()
		}
	}

	return Deny(denyDefault)
}

// AuthorizePartnerChange gates mutations of the partnerId field: setting or
// changing it is admin-exclusive, whatever the actor otherwise owns.
// requested==nil means the field is untouched.
func AuthorizePartnerChange(actor Actor, current, requested *uint) Decision {
	if requested == nil {
		return Allow()
	}
	if current != nil && *current == *requested {
		return Allow()
	}
	if actor.Role == models.RoleAdmin {
		return Allow()
	}
	return Deny("only administrators can change the partner of a record")
}
