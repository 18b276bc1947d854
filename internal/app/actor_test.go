package app

import (
	"context"
	"testing"

	"github.com/hylla/dragboard/internal/domain"
)

// TestMutationActorContextRoundTrip verifies normalization and retrieval from context.
func TestMutationActorContextRoundTrip(t *testing.T) {
	ctx := WithMutationActor(context.Background(), MutationActor{ActorID: " planner ", ActorType: " Agent "})
	actor, ok := MutationActorFromContext(ctx)
	if !ok {
		t.Fatal("MutationActorFromContext() expected actor")
	}
	if actor.ActorID != "planner" || actor.ActorType != domain.ActorTypeAgent {
		t.Fatalf("unexpected actor %#v", actor)
	}
}

// TestMutationActorDefaults verifies absence and local-user fallback.
func TestMutationActorDefaults(t *testing.T) {
	if _, ok := MutationActorFromContext(context.Background()); ok {
		t.Fatal("MutationActorFromContext() expected no actor for empty context")
	}
	blank := WithMutationActor(context.Background(), MutationActor{ActorID: "  "})
	if _, ok := MutationActorFromContext(blank); ok {
		t.Fatal("MutationActorFromContext() expected no actor for blank id")
	}
	actor := actorFor(blank)
	if actor.ActorID != domain.DefaultActorID || actor.ActorType != domain.ActorTypeUser {
		t.Fatalf("unexpected fallback actor %#v", actor)
	}
}
