package domain

import "strings"

// ActorType identifies who performed a mutation.
type ActorType string

// ActorType values.
const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAgent  ActorType = "agent"
	ActorTypeSystem ActorType = "system"
)

// DefaultActorID attributes mutations with no explicit caller.
const DefaultActorID = "dragboard-user"

// NormalizeActorType lowercases the value and falls back to user.
func NormalizeActorType(actorType ActorType) ActorType {
	switch ActorType(strings.ToLower(strings.TrimSpace(string(actorType)))) {
	case ActorTypeAgent:
		return ActorTypeAgent
	case ActorTypeSystem:
		return ActorTypeSystem
	default:
		return ActorTypeUser
	}
}
