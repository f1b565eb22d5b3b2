package access

import (
	"gorm.io/gorm"

	"mak3-crm/internal/models"
)

// ContactScope returns the mandatory ownership clause for contact listings.
// Composed with caller filters via db.Scopes, so search can never bypass it.
func ContactScope(actor Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch actor.Role {
		case models.RoleAdmin:
			return db
		case models.RoleManager:
			// менеджер в списке видит только назначенные ему контакты,
			// хотя одиночное чтение не ограничено
			return db.Where("assigned_to_id = ?", actor.ID)
		case models.RolePartner:
			return db.Where("partner_id = ?", actor.ID)
		case models.RolePartnerEmployee:
			return db.Where("partner_id = ?", derefOrZero(actor.PartnerID))
		default:
			return db.Where("assigned_to_id = ?", actor.ID)
		}
	}
}

// DealScope returns the ownership clause for deal listings. Managers see all
// deals, unlike contacts; the asymmetry is preserved as observed.
func DealScope(actor Actor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch actor.Role {
		case models.RoleAdmin, models.RoleManager:
			return db
		case models.RolePartner, models.RolePartnerEmployee:
			return db.Where("partner_id = ?", derefOrZero(actor.PartnerAnchor()))
		default:
			return db.Where("assigned_to_id = ?", actor.ID)
		}
	}
}

// ContactSearch ORs a case-insensitive substring match across the name fields
// and email, plus a plain substring match on phone.
func ContactSearch(term string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if term == "" {
			return db
		}
		like := "%" + term + "%"
		return db.Where(
			"LOWER(first_name) LIKE LOWER(?) OR LOWER(last_name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?) OR phone LIKE ?",
			like, like, like, like,
		)
	}
}

func derefOrZero(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}
