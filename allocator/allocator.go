package allocator

import (
	"practice-insights/models"
)

// Total is an undated DNA or unused-slot amount for one staff member and
// slot type, summed over the whole export.
type Total struct {
	StaffName string
	SlotType  string
	Amount    float64
}

// Share is the part of a Total attributed to one month.
type Share struct {
	Month     string
	StaffName string
	SlotType  string
	Amount    float64
}

// Activity describes where appointment volume fell in one processing run.
type Activity struct {
	// Months are the month keys of the run in chronological order.
	Months []string
	// Volume is the practice appointment count per month key.
	Volume map[string]int
	// StaffMonths lists, per staff member, the months in which that staff
	// member had appointments, in chronological order.
	StaffMonths map[string][]string
}

// Allocate spreads each total across month buckets according to policy.
// Shares are left fractional; rounding happens only at presentation time.
// Totals are dropped only when the run has no months at all.
func Allocate(totals []Total, activity Activity, policy models.AllocationPolicy) []Share {
	if len(activity.Months) == 0 {
		return nil
	}

	shares := make([]Share, 0, len(totals))
	for _, t := range totals {
		if t.Amount == 0 {
			continue
		}
		switch policy {
		case models.AllocateVolumeWeighted:
			shares = append(shares, volumeWeighted(t, activity)...)
		default:
			shares = append(shares, evenSplit(t, activity)...)
		}
	}
	return shares
}

// evenSplit gives every month the staff member worked the same amount. A
// staff member with no recorded months has the whole amount attributed to
// the earliest month of the run.
func evenSplit(t Total, activity Activity) []Share {
	months := activity.StaffMonths[t.StaffName]
	if len(months) == 0 {
		return []Share{newShare(t, activity.Months[0], t.Amount)}
	}

	split := t.Amount / float64(len(months))
	out := make([]Share, 0, len(months))
	for _, m := range months {
		out = append(out, newShare(t, m, split))
	}
	return out
}

// volumeWeighted gives every month of the run the fraction of the total
// equal to its share of practice appointment volume.
func volumeWeighted(t Total, activity Activity) []Share {
	totalVolume := 0
	for _, m := range activity.Months {
		totalVolume += activity.Volume[m]
	}
	if totalVolume <= 0 {
		return []Share{newShare(t, activity.Months[0], t.Amount)}
	}

	out := make([]Share, 0, len(activity.Months))
	for _, m := range activity.Months {
		v := activity.Volume[m]
		if v <= 0 {
			continue
		}
		weight := float64(v) / float64(totalVolume)
		out = append(out, newShare(t, m, t.Amount*weight))
	}
	return out
}

func newShare(t Total, month string, amount float64) Share {
	return Share{
		Month:     month,
		StaffName: t.StaffName,
		SlotType:  t.SlotType,
		Amount:    amount,
	}
}
