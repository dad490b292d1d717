package identity

import (
	"context"
	"testing"

	"github.com/serataapp/serata-backend/pkg/config"
	"github.com/serataapp/serata-backend/pkg/phone"
)

func newTestRegistry(t *testing.T, repo Repository) *Registry {
	t.Helper()
	matcher := phone.NewMatcher(config.PhoneConfig{DefaultCountryCode: "39", MinMatchDigits: 6})
	registry, err := NewRegistry(repo, matcher)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func TestUpsertCreatesIdentityOnFirstContact(t *testing.T) {
	repo := newFakeRepo()
	registry := newTestRegistry(t, repo)

	identity, err := registry.Upsert(context.Background(), ContactInput{
		FirstName: "Giulia",
		LastName:  "Rossi",
		Phone:     "+39 333 1234567",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if identity == nil {
		t.Fatal("expected identity created")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one create, got %d", len(repo.created))
	}
	if identity.NormalizedPhone != "393331234567" {
		t.Fatalf("unexpected normalized phone %q", identity.NormalizedPhone)
	}
	if identity.FirstName == nil || *identity.FirstName != "Giulia" {
		t.Fatalf("first name not stored")
	}
}

func TestUpsertMatchesAcrossPrefixForms(t *testing.T) {
	repo := newFakeRepo()
	registry := newTestRegistry(t, repo)

	first, err := registry.Upsert(context.Background(), ContactInput{
		FirstName: "Giulia",
		Phone:     "00393331234567",
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := registry.Upsert(context.Background(), ContactInput{
		LastName: "Rossi",
		Phone:    "+39 333 1234567",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("same phone family must resolve to one identity")
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one identity, got %d creates", len(repo.created))
	}
}

func TestUpsertNeverOverwritesPopulatedFields(t *testing.T) {
	repo := newFakeRepo()
	registry := newTestRegistry(t, repo)

	if _, err := registry.Upsert(context.Background(), ContactInput{
		FirstName: "Giulia",
		Email:     "giulia@example.com",
		Phone:     "3331234567",
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	identity, err := registry.Upsert(context.Background(), ContactInput{
		FirstName: "Julia",
		Email:     "other@example.com",
		LastName:  "Rossi",
		Phone:     "3331234567",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if *identity.FirstName != "Giulia" {
		t.Fatalf("populated first name was overwritten: %q", *identity.FirstName)
	}
	if *identity.Email != "giulia@example.com" {
		t.Fatalf("populated email was overwritten: %q", *identity.Email)
	}
	if identity.LastName == nil || *identity.LastName != "Rossi" {
		t.Fatalf("empty last name should have been filled")
	}
}

func TestUpsertSkipsUnmatchablePhones(t *testing.T) {
	repo := newFakeRepo()
	registry := newTestRegistry(t, repo)

	identity, err := registry.Upsert(context.Background(), ContactInput{
		FirstName: "Garbage",
		Phone:     "123",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if identity != nil {
		t.Fatal("short phone must not yield an identity")
	}
	if len(repo.created) != 0 {
		t.Fatal("no identity should be created for unusable phones")
	}
}
