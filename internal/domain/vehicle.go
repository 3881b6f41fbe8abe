package domain

// Routing configuration for a single vehicle or field agent.
type VehicleConfig struct {
	ID        string
	Capacity  Demand
	Start     Location
	End       Location
	Shift     TimeWindow
	CostPerKm float64
	FixedCost float64
	Skills    []string
}

func (v VehicleConfig) HasSkill(skill string) bool {
	if skill == "" {
		return true
	}
	for _, s := range v.Skills {
		if s == skill {
			return true
		}
	}
	return false
}
