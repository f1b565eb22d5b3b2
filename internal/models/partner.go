package models

import "gorm.io/gorm"

// Partner — внешняя партнёрская организация, поставляющая лиды.
// Пользователь с ролью PARTNER является якорем владения: partner_id
// у его контактов равен id самого пользователя-партнёра.
type Partner struct {
	gorm.Model
	Name string `json:"name" gorm:"size:255;not null"`
	Type string `json:"type" gorm:"size:100"` // агентство, брокер и т.п.
}
