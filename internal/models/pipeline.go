package models

import "gorm.io/gorm"

type Pipeline struct {
	gorm.Model
	Name     string `json:"name" gorm:"size:255;not null"`
	IsActive bool   `json:"isActive"`

	Stages []PipelineStage `json:"stages,omitempty"`
}

// PipelineStage — этап воронки. Order плотный, с нуля, уникальный в рамках воронки.
type PipelineStage struct {
	gorm.Model
	PipelineID uint   `json:"pipelineId" gorm:"index;not null"`
	Name       string `json:"name" gorm:"size:255;not null"`
	Order      int    `json:"order" gorm:"column:stage_order;not null"`
	Color      string `json:"color" gorm:"size:32"`
}
