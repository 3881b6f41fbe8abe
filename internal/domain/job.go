package domain

// Event and job priority, ordered from least to most urgent.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityUrgent:
		return "urgent"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// Demand vector carried by a job and capacity vector offered by a vehicle.
type Demand struct {
	WeightKg float64
	VolumeM3 float64
	Items    int
}

func (d Demand) Add(o Demand) Demand {
	return Demand{
		WeightKg: d.WeightKg + o.WeightKg,
		VolumeM3: d.VolumeM3 + o.VolumeM3,
		Items:    d.Items + o.Items,
	}
}

// Report whether the demand fits within the given capacity on every axis.
func (d Demand) Fits(capacity Demand) bool {
	return d.WeightKg <= capacity.WeightKg &&
		d.VolumeM3 <= capacity.VolumeM3 &&
		d.Items <= capacity.Items
}

// One unit of work to place into a route. The ID is opaque and references the
// originating business entity (an order or a visit). A job whose Skill is
// non-empty may only be served by a vehicle carrying that skill.
type Job struct {
	ID       string
	Location Location
	Demand   Demand
	Priority Priority
	Skill    string
}
