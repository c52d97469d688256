package booking

// Allocation is the derived cost of a booking.
type Allocation struct {
	TotalCost          float64
	CostPerParticipant float64
}

// Allocate splits rate times duration evenly across the roster. An empty
// roster owes nothing per head.
func Allocate(hourlyRate, durationHours float64, participants int) Allocation {
	total := hourlyRate * durationHours
	a := Allocation{TotalCost: total}
	if participants > 0 {
		a.CostPerParticipant = total / float64(participants)
	}
	return a
}
