package openclaw

import (
	"runtime"
	"testing"
)

func TestNewClientInfo(t *testing.T) {
	info := NewClientInfo()

	if info.ID != DefaultClientID {
		t.Errorf("expected id %s, got %s", DefaultClientID, info.ID)
	}
	if info.DisplayName != DefaultClientDisplayName {
		t.Errorf("expected display name %s, got %s", DefaultClientDisplayName, info.DisplayName)
	}
	if info.Platform != runtime.GOOS {
		t.Errorf("expected platform %s, got %s", runtime.GOOS, info.Platform)
	}
	if info.Mode != "backend" {
		t.Errorf("expected mode backend, got %s", info.Mode)
	}
	if info.Role != "operator" {
		t.Errorf("expected role operator, got %s", info.Role)
	}
	if len(info.Scopes) != 0 || len(info.Caps) != 0 {
		t.Errorf("expected no scopes or caps, got %v %v", info.Scopes, info.Caps)
	}
}

func TestClientInfoBuilder(t *testing.T) {
	info := NewClientInfo().
		WithID("speaker").
		WithDisplayName("Kitchen Speaker").
		WithVersion("2.0.0").
		WithPlatform("esp32").
		WithMode("voice").
		WithRole("node").
		WithScopes("operator.read", "operator.write").
		WithCaps("tts")

	if info.ID != "speaker" {
		t.Errorf("expected id speaker, got %s", info.ID)
	}
	if info.DisplayName != "Kitchen Speaker" {
		t.Errorf("expected display name 'Kitchen Speaker', got %s", info.DisplayName)
	}
	if info.Version != "2.0.0" {
		t.Errorf("expected version 2.0.0, got %s", info.Version)
	}
	if info.Platform != "esp32" {
		t.Errorf("expected platform esp32, got %s", info.Platform)
	}
	if info.Mode != "voice" {
		t.Errorf("expected mode voice, got %s", info.Mode)
	}
	if info.Role != "node" {
		t.Errorf("expected role node, got %s", info.Role)
	}
	if !info.HasScope("operator.write") {
		t.Error("expected operator.write scope")
	}
	if info.HasScope("operator.admin") {
		t.Error("did not expect operator.admin scope")
	}
	if len(info.Caps) != 1 || info.Caps[0] != "tts" {
		t.Errorf("expected caps [tts], got %v", info.Caps)
	}
}

func TestClientInfoClone(t *testing.T) {
	info := NewClientInfo().WithScopes("operator.read")
	clone := info.Clone()

	clone.WithScopes("operator.write")
	clone.DisplayName = "Other"

	if info.HasScope("operator.write") {
		t.Error("expected clone scopes to be independent")
	}
	if info.DisplayName == "Other" {
		t.Error("expected clone fields to be independent")
	}
}
