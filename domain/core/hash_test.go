package core

import "testing"

func TestNewHash(t *testing.T) {
	a := NewHash([]byte("CREATE TABLE chain_priors"))
	if len(a.String()) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a.String()))
	}
	if a != NewHash([]byte("CREATE TABLE chain_priors")) {
		t.Error("Expected equal input to hash equally")
	}
	if a == NewHash([]byte("CREATE TABLE chain_surfaces")) {
		t.Error("Expected different input to hash differently")
	}
	if got := NewHash(nil).String(); got != "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("Unexpected digest of empty input: %s", got)
	}
}
