package solver

// Selection thresholds. Small problems are near-optimal under greedy within
// microseconds; synchronous external services stop paying off past the large
// threshold and the genetic algorithm takes over under its own time budget.
const (
	smallProblemJobs = 8
	largeProblemJobs = 200
	tightnessCutoff  = 0.5
)

// Decision is the selector's pick plus the reason it was made, for logs.
type Decision struct {
	Type   Type
	Reason string
}

type Selector struct{}

func NewSelector() *Selector { return &Selector{} }

// Pick applies the decision policy over the derived problem features.
func (s *Selector) Pick(f ProblemFeatures) Decision {
	switch {
	case f.JobCount <= smallProblemJobs || f.VehicleCount <= 1:
		return Decision{Type: TypeGreedy, Reason: "small-problem"}
	case f.HasSkills || f.WindowTightness >= tightnessCutoff:
		return Decision{Type: TypeConstraintService, Reason: "hard-constraints"}
	case f.JobCount > largeProblemJobs:
		return Decision{Type: TypeGenetic, Reason: "too-large-for-sync-service"}
	default:
		return Decision{Type: TypeHeuristicService, Reason: "large-unconstrained"}
	}
}
