package domain

// ActorRole enumerates the roles an actor can play on a track.
type ActorRole int

const (
	ActorArtist ActorRole = iota
	ActorComposer
	ActorConductor
	ActorDjMixer
	ActorEngineer
	ActorLyricist
	ActorMixer
	ActorPerformer
	ActorProducer
	ActorDirector
	ActorRemixer
	ActorWriter
	ActorArranger
)

// ActorKind distinguishes how an actor's name is recorded.
type ActorKind int

const (
	ActorSummary ActorKind = iota
	ActorIndividual
	ActorSorting
)

// Actor is one contributor entry on a track.
type Actor struct {
	Role      ActorRole
	Kind      ActorKind
	Name      string
	RoleNotes string
}

// Actors is an ordered list of Actor with the cardinality invariant
// from spec.md §3: at most one Summary and at most one Sorting per role.
type Actors []Actor

// ValidateCardinality reports whether the ≤1-summary, ≤1-sorting per
// role invariant holds (spec.md §8 property 6).
func (as Actors) ValidateCardinality() bool {
	seen := map[[2]int]bool{}
	for _, a := range as {
		if a.Kind == ActorIndividual {
			continue
		}
		key := [2]int{int(a.Role), int(a.Kind)}
		if seen[key] {
			return false
		}
		seen[key] = true
	}
	return true
}

// MainActor returns the derived "main" actor for a role: the Summary
// entry if present, else the sole Individual entry if there is exactly one.
func (as Actors) MainActor(role ActorRole) (Actor, bool) {
	var individuals []Actor
	for _, a := range as {
		if a.Role != role {
			continue
		}
		if a.Kind == ActorSummary {
			return a, true
		}
		if a.Kind == ActorIndividual {
			individuals = append(individuals, a)
		}
	}
	if len(individuals) == 1 {
		return individuals[0], true
	}
	return Actor{}, false
}
