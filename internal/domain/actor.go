package domain

// ActorType enumerates who is acting on a ticket.
type ActorType string

const (
	ActorTypeUser       ActorType = "USER"
	ActorTypeTechnician ActorType = "TECHNICIAN"
	ActorTypeBackOffice ActorType = "BACK_OFFICE"
	ActorTypeSystem     ActorType = "SYSTEM"
)

// Actor identifies the caller of an engine operation. It is passed explicitly
// into every mutating call; the engine holds no ambient session state.
type Actor struct {
	Type ActorType
	ID   string
	Name string
}

// SystemActor is used for rule-driven mutations with no human caller.
func SystemActor() Actor {
	return Actor{Type: ActorTypeSystem, ID: "system", Name: "Workflow Engine"}
}
