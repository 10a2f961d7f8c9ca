package auth

import (
	"encoding/base64"
	"testing"

	"github.com/logcove/logcove/pkg/model"
)

func TestIssueAndVerifyAPIKey(t *testing.T) {
	secret := []byte("my-secret-key")
	clientID := "test-client"

	// 1. Issue key
	apiKey, err := IssueAPIKey(clientID, nil, secret)
	if err != nil {
		t.Fatalf("IssueAPIKey: %v", err)
	}

	// 2. Verify valid key
	extractedID, scope, err := VerifyAPIKey(apiKey, secret)
	if err != nil {
		t.Fatalf("Expected key to be valid, got err=%v", err)
	}
	if extractedID != clientID {
		t.Errorf("Expected clientID %s, got %s", clientID, extractedID)
	}
	if scope != nil {
		t.Errorf("Expected unrestricted scope, got %v", scope)
	}

	// 3. Verify invalid key (wrong secret)
	if _, _, err = VerifyAPIKey(apiKey, []byte("wrong-secret")); err == nil {
		t.Error("Expected failure with wrong secret, got success")
	}

	// 4. Verify malformed key
	if _, _, err = VerifyAPIKey("just-some-string", secret); err == nil {
		t.Error("Expected failure with malformed key, got success")
	}

	// 5. Verify tampered signature
	if _, _, err = VerifyAPIKey(apiKey+"tampered", secret); err == nil {
		t.Error("Expected failure with tampered key, got success")
	}

	// 6. Verify forged signature
	payload := base64.RawURLEncoding.EncodeToString([]byte(clientID + ":"))
	forged := payload + "." + base64.RawURLEncoding.EncodeToString([]byte("fake-sig"))
	if _, _, err = VerifyAPIKey(forged, secret); err == nil {
		t.Error("Expected failure with forged key, got success")
	}
}

func TestAPIKey_ProjectScope(t *testing.T) {
	secret := []byte("scope-secret")

	apiKey, err := IssueAPIKey("agent-7", []model.LogProject{model.LogProjectAgents, model.LogProjectOther}, secret)
	if err != nil {
		t.Fatalf("IssueAPIKey: %v", err)
	}

	clientID, scope, err := VerifyAPIKey(apiKey, secret)
	if err != nil {
		t.Fatalf("VerifyAPIKey: %v", err)
	}
	if clientID != "agent-7" {
		t.Errorf("Expected clientID agent-7, got %s", clientID)
	}
	if len(scope) != 2 {
		t.Fatalf("Expected 2 scoped projects, got %v", scope)
	}

	if !Allowed(scope, model.LogProjectAgents) {
		t.Error("Expected agents to be allowed")
	}
	if Allowed(scope, model.LogProjectServer) {
		t.Error("Expected server to be denied")
	}
	if !Allowed(nil, model.LogProjectServer) {
		t.Error("Expected nil scope to allow everything")
	}
}

func TestIssueAPIKey_Validation(t *testing.T) {
	secret := []byte("s")

	if _, err := IssueAPIKey("", nil, secret); err == nil {
		t.Error("Expected empty client id to be rejected")
	}
	if _, err := IssueAPIKey("has:colon", nil, secret); err == nil {
		t.Error("Expected client id with delimiter to be rejected")
	}
	if _, err := IssueAPIKey("ok", []model.LogProject{"warehouse"}, secret); err == nil {
		t.Error("Expected unknown project scope to be rejected")
	}
}
