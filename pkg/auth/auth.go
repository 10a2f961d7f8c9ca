package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/logcove/logcove/pkg/model"
)

// Key format: base64url(clientID:proj1,proj2,...).signature
// The signature is an HMAC-SHA256 over the encoded payload, so both the
// client identity and its project scope are tamper-proof.

// IssueAPIKey generates an API key for clientID, scoped to the given
// projects, signed with the secret. An empty project list grants access to
// every project.
func IssueAPIKey(clientID string, projects []model.LogProject, secret []byte) (string, error) {
	if clientID == "" || strings.ContainsAny(clientID, ":,") {
		return "", errors.New("invalid client id")
	}
	for _, p := range projects {
		if !p.Valid() {
			return "", fmt.Errorf("unknown project %q", p)
		}
	}

	scopes := make([]string, len(projects))
	for i, p := range projects {
		scopes[i] = string(p)
	}
	payload := base64.RawURLEncoding.EncodeToString([]byte(clientID + ":" + strings.Join(scopes, ",")))

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	signature := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return payload + "." + signature, nil
}

// VerifyAPIKey verifies an API key against the secret. Returns the client
// id and its project scope (nil means unrestricted).
func VerifyAPIKey(apiKey string, secret []byte) (string, []model.LogProject, error) {
	parts := strings.Split(apiKey, ".")
	if len(parts) != 2 {
		return "", nil, errors.New("invalid api key format")
	}
	payload, providedSig := parts[0], parts[1]

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	expectedSig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(providedSig), []byte(expectedSig)) {
		return "", nil, errors.New("invalid signature")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.New("invalid api key payload")
	}
	clientID, scopes, found := strings.Cut(string(decoded), ":")
	if !found || clientID == "" {
		return "", nil, errors.New("invalid api key payload")
	}
	if scopes == "" {
		return clientID, nil, nil
	}

	var projects []model.LogProject
	for _, s := range strings.Split(scopes, ",") {
		p := model.LogProject(s)
		if !p.Valid() {
			return "", nil, fmt.Errorf("unknown project scope %q", s)
		}
		projects = append(projects, p)
	}
	return clientID, projects, nil
}

// Allowed reports whether a key scope permits writing to project. A nil
// scope is unrestricted.
func Allowed(scope []model.LogProject, project model.LogProject) bool {
	if len(scope) == 0 {
		return true
	}
	for _, p := range scope {
		if p == project {
			return true
		}
	}
	return false
}
