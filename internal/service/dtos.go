package service

import "github.com/godilite/insighter/internal/repository/models"

type DimensionSummary struct {
	Dimension    models.Dimension `json:"dimension"`
	Name         string           `json:"name"`
	Mean         float64          `json:"mean"`
	Scored       int              `json:"scored"`
	NotAvailable int              `json:"not_available"`
	Empty        int              `json:"empty"`
}
