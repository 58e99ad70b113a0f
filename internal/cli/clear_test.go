package cli

import (
	"strings"
	"testing"
)

func TestClearCmd_RequiresForce(t *testing.T) {
	origForce := clearForce
	defer func() { clearForce = origForce }()
	clearForce = false

	err := clearCmd.RunE(clearCmd, []string{})
	if err == nil {
		t.Fatal("expected error without --force")
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClearCmd_NilFactory(t *testing.T) {
	origForce := clearForce
	origFactory := NewAdapter
	defer func() {
		clearForce = origForce
		NewAdapter = origFactory
	}()
	clearForce = true
	NewAdapter = nil

	err := clearCmd.RunE(clearCmd, []string{})
	if err == nil {
		t.Fatal("expected error when adapter factory is nil")
	}
	if !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("unexpected error: %v", err)
	}
}
