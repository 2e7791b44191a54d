// pkg/bootstrap/phase.go

package bootstrap

// Phase names a state of the installation sequence. The orchestrator is a
// strictly sequential state machine; there are no concurrent installation
// steps, only blocking collaborator calls inside each phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInspecting
	PhaseResolving
	PhaseElevating
	PhaseAcquiring
	PhaseConfiguringServices
	PhaseDone
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInspecting:
		return "inspecting"
	case PhaseResolving:
		return "resolving"
	case PhaseElevating:
		return "elevating"
	case PhaseAcquiring:
		return "acquiring"
	case PhaseConfiguringServices:
		return "configuring-services"
	case PhaseDone:
		return "done"
	case PhaseRolledBack:
		return "rolled-back"
	}
	return "unknown"
}
