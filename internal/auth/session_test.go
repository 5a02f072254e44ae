package auth

import (
	"testing"
	"time"

	"github.com/hitoshi/campusauth/internal/model"
)

func TestSerializeDeserialize_KeepsWholeAccount(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &model.Account{
		ID:        "f-1",
		Role:      model.RoleFaculty,
		Name:      "Prof",
		Email:     "prof@example.edu",
		Avatar:    "https://example.com/p.png",
		CreatedAt: created,
		UpdatedAt: created,
	}

	data, err := Serialize(in)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	out, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}

	if out.ID != in.ID || out.Role != in.Role || out.Name != in.Name || out.Email != in.Email || out.Avatar != in.Avatar {
		t.Errorf("Deserialize(Serialize(a)) = %+v, want %+v", out, in)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || !out.UpdatedAt.Equal(in.UpdatedAt) {
		t.Errorf("timestamps = (%v, %v), want %v", out.CreatedAt, out.UpdatedAt, created)
	}
}

func TestDeserialize_TrustsPayloadAsIs(t *testing.T) {
	// ロールが未知でも検証しない
	out, err := Deserialize([]byte(`{"id":"x","role":"ghost","email":"g@example.edu"}`))
	if err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if out.Role != model.Role("ghost") {
		t.Errorf("Role = %q, want %q", out.Role, "ghost")
	}
}

func TestDeserialize_InvalidJSON(t *testing.T) {
	if _, err := Deserialize([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestSerialize_NilAccount(t *testing.T) {
	if _, err := Serialize(nil); err == nil {
		t.Fatal("expected error for nil account")
	}
}
