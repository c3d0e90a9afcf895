package models

import "time"

// RoleGroup is a higher-level staffing bucket a role contributes to.
type RoleGroup string

const (
	RoleGroupGP          RoleGroup = "gp"
	RoleGroupClinical    RoleGroup = "clinical"
	RoleGroupNonClinical RoleGroup = "non_clinical"
	RoleGroupARRS        RoleGroup = "arrs"
)

// WorkforceTotals is one practice's staffing for one reporting month.
// Headcount fields are nil when no contributing column was present.
type WorkforceTotals struct {
	TotalWte            float64 `json:"totalWte"`
	TotalWteGP          float64 `json:"totalWteGP"`
	TotalWteClinical    float64 `json:"totalWteClinical"`
	TotalWteNonClinical float64 `json:"totalWteNonClinical"`
	TotalWteARRS        float64 `json:"totalWteARRS"`

	TotalHeadcount            *float64 `json:"totalHeadcount"`
	TotalHeadcountGP          *float64 `json:"totalHeadcountGP"`
	TotalHeadcountClinical    *float64 `json:"totalHeadcountClinical"`
	TotalHeadcountNonClinical *float64 `json:"totalHeadcountNonClinical"`
	TotalHeadcountARRS        *float64 `json:"totalHeadcountARRS"`

	// Roles holds the WTE of each mapped role that was present.
	Roles map[string]float64 `json:"roles,omitempty"`
}

// Wte returns the WTE total of a role group.
func (w WorkforceTotals) Wte(group RoleGroup) float64 {
	switch group {
	case RoleGroupGP:
		return w.TotalWteGP
	case RoleGroupClinical:
		return w.TotalWteClinical
	case RoleGroupNonClinical:
		return w.TotalWteNonClinical
	case RoleGroupARRS:
		return w.TotalWteARRS
	}
	return 0
}

// CapacityUtilization compares actual appointments with the theoretical
// capacity of a role group. Utilization above 1 is reported, not clamped.
type CapacityUtilization struct {
	Group        RoleGroup `json:"group"`
	Wte          float64   `json:"wte"`
	Actual       float64   `json:"actual"`
	Theoretical  float64   `json:"theoretical"`
	Utilization  *float64  `json:"utilization"`
	OverCapacity bool      `json:"overCapacity"`
}

// WorkforcePeriod is the staffing of one practice in one reporting month.
// Month and Date are empty for rows without a readable reporting month.
type WorkforcePeriod struct {
	Practice string          `json:"practice,omitempty"`
	Month    string          `json:"month,omitempty"`
	Date     time.Time       `json:"date"`
	Totals   WorkforceTotals `json:"totals"`
}

// WorkforceSummary pairs the staffing of the selected period with
// WTE-normalised ratios. Periods holds every period of the upload.
type WorkforceSummary struct {
	Practice             string                `json:"practice,omitempty"`
	Month                string                `json:"month,omitempty"`
	Totals               WorkforceTotals       `json:"totals"`
	PatientsPerWte       *float64              `json:"patientsPerWte"`
	PatientsPerGPWte     *float64              `json:"patientsPerGpWte"`
	AppointmentsPerWte   *float64              `json:"appointmentsPerWte"`
	AppointmentsPerGPWte *float64              `json:"appointmentsPerGpWte"`
	Capacity             []CapacityUtilization `json:"capacity"`
	Periods              []WorkforcePeriod     `json:"periods,omitempty"`
}
