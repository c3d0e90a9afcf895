package models

// AllocationPolicy selects how undated DNA/unused totals are spread across
// months.
type AllocationPolicy string

const (
	// AllocateEvenSplit divides a staff member's total evenly over the
	// months that staff member has appointment activity.
	AllocateEvenSplit AllocationPolicy = "even_split"
	// AllocateVolumeWeighted divides a total over every month by that
	// month's share of practice appointment volume. Used for aggregate-only
	// uploads.
	AllocateVolumeWeighted AllocationPolicy = "volume_weighted"
)

// UnknownMonthPolicy decides what happens to dated secondary rows (DNA,
// unused, online, telephony) whose month or staff member never appeared in
// the appointments data.
type UnknownMonthPolicy string

const (
	UnknownMonthFallback UnknownMonthPolicy = "fallback"
	UnknownMonthDrop     UnknownMonthPolicy = "drop"
)

// NoForecast as ForecastPeriods asks for no projected months. The zero
// value means DefaultForecastPeriods.
const NoForecast = -1

const (
	DefaultForecastPeriods     = 2
	DefaultOutlierThreshold    = 1.5
	DefaultWorkingDaysPerMonth = 21
)

// Config holds the analysis options of one processing run.
type Config struct {
	Population               float64               `json:"population" validate:"gte=0"`
	UseTelephony             bool                  `json:"useTelephony"`
	UseOnline                bool                  `json:"useOnline"`
	WorkingDaysPerMonth      float64               `json:"workingDaysPerMonth" validate:"gte=0,lte=31"`
	AppointmentsPerWtePerDay map[RoleGroup]float64 `json:"appointmentsPerWtePerDay"`
	Allocation               AllocationPolicy      `json:"allocation" validate:"omitempty,oneof=even_split volume_weighted"`
	UnknownMonth             UnknownMonthPolicy    `json:"unknownMonth" validate:"omitempty,oneof=fallback drop"`
	ForecastPeriods          int                   `json:"forecastPeriods" validate:"gte=-1,lte=24"`
	OutlierThreshold         float64               `json:"outlierThreshold" validate:"gte=0"`

	// MissedCallRepeatFactor, when positive, estimates unique missed callers
	// as MissedFromQueue times this factor for reports lacking a
	// unique-caller figure. Zero leaves such months without an extra-slots
	// estimate.
	MissedCallRepeatFactor float64 `json:"missedCallRepeatFactor" validate:"gte=0,lte=1"`
}

// RequestedForecastPeriods converts a user-supplied period count, where 0
// means none, into a ForecastPeriods value.
func RequestedForecastPeriods(n int) int {
	if n == 0 {
		return NoForecast
	}
	return n
}

// Projections is the number of months to project. It is never negative.
func (c Config) Projections() int {
	if c.ForecastPeriods < 0 {
		return 0
	}
	return c.ForecastPeriods
}

// DefaultAppointmentsPerWtePerDay is the capacity assumption per role group.
func DefaultAppointmentsPerWtePerDay() map[RoleGroup]float64 {
	return map[RoleGroup]float64{
		RoleGroupGP:          25,
		RoleGroupClinical:    20,
		RoleGroupARRS:        16,
		RoleGroupNonClinical: 0,
	}
}

// WithDefaults fills unset options.
func (c Config) WithDefaults() Config {
	if c.WorkingDaysPerMonth == 0 {
		c.WorkingDaysPerMonth = DefaultWorkingDaysPerMonth
	}
	if c.AppointmentsPerWtePerDay == nil {
		c.AppointmentsPerWtePerDay = DefaultAppointmentsPerWtePerDay()
	}
	if c.Allocation == "" {
		c.Allocation = AllocateEvenSplit
	}
	if c.UnknownMonth == "" {
		c.UnknownMonth = UnknownMonthFallback
	}
	if c.ForecastPeriods == 0 {
		c.ForecastPeriods = DefaultForecastPeriods
	}
	if c.OutlierThreshold == 0 {
		c.OutlierThreshold = DefaultOutlierThreshold
	}
	return c
}
