package commands

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/savaki/campus-portal/internal/services"
	"github.com/savaki/campus-portal/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeys_Env(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, generateKeys(&buf, 2, false, time.Now()))

	line := strings.TrimSpace(buf.String())
	require.True(t, strings.HasPrefix(line, "SESSION_KEYS="))

	keys := services.ParseSessionKeys(context.Background(), strings.TrimPrefix(line, "SESSION_KEYS="))
	assert.Len(t, keys, 2)
}

func TestGenerateKeys_JSON(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, generateKeys(&buf, 1, true, now))

	var versions []services.SecretVersion
	require.NoError(t, json.Unmarshal(buf.Bytes(), &versions))
	require.Len(t, versions, 1)
	assert.Equal(t, "2026-10-14T09:00:00Z", versions[0].Timestamp)
}

func TestGenerateKeys_Count(t *testing.T) {
	assert.Error(t, generateKeys(&bytes.Buffer{}, 0, false, time.Now()))
	assert.Error(t, generateKeys(&bytes.Buffer{}, services.DefaultKeyVersions+1, false, time.Now()))
}

func TestInspectSession(t *testing.T) {
	master := bytes.Repeat([]byte{8}, 32)
	keys, err := session.NewKeySet([][]byte{master})
	require.NoError(t, err)

	cookies, err := session.NewCodec(keys, session.CodecOptions{}).Encode(session.Session{
		Username:   "alice@kzxy.edu.kg",
		UserID:     "u1",
		FullName:   "Alice Li",
		TrustLevel: session.TrustVerified,
	}, session.EncodeOptions{})
	require.NoError(t, err)

	var parts []string
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	header := strings.Join(parts, "; ")

	var buf bytes.Buffer
	err = inspectSession(context.Background(), &buf, base64.StdEncoding.EncodeToString(master), header, false)
	require.NoError(t, err)

	var got inspection
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "alice@kzxy.edu.kg", got.Session.Username)
	assert.True(t, got.Authenticated)
	assert.True(t, got.Verified)

	buf.Reset()
	other := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, inspectSession(context.Background(), &buf, other, header, false))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.False(t, got.Authenticated)
}

func TestInspectSession_RequiresKeys(t *testing.T) {
	err := inspectSession(context.Background(), &bytes.Buffer{}, "", "oauthUsername=x", false)
	assert.Error(t, err)
}

func TestKeySource(t *testing.T) {
	assert.Equal(t, "environment", keySource(&services.Config{SessionKeys: "k"}))
	assert.Equal(t, "secretsmanager:portal/keys", keySource(&services.Config{SessionKeySecretName: "portal/keys"}))
	assert.Equal(t, "ephemeral", keySource(&services.Config{}))
}
