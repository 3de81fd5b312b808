package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVault is an in-memory secret with staged versions.
type fakeVault struct {
	values map[string]string   // version id -> secret string
	stages map[string][]string // version id -> stages
}

func newFakeVault(current string) *fakeVault {
	v := &fakeVault{
		values: map[string]string{},
		stages: map[string][]string{},
	}
	if current != "" {
		v.values["v0"] = current
		v.stages["v0"] = []string{stageCurrent}
	}
	return v
}

func (v *fakeVault) versionWith(stage string) (string, bool) {
	for id, stages := range v.stages {
		for _, s := range stages {
			if s == stage {
				return id, true
			}
		}
	}
	return "", false
}

func (v *fakeVault) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	id := aws.ToString(params.VersionId)
	if id == "" {
		stage := aws.ToString(params.VersionStage)
		if stage == "" {
			stage = stageCurrent
		}
		found, ok := v.versionWith(stage)
		if !ok {
			return nil, errors.New("ResourceNotFoundException")
		}
		id = found
	}
	value, ok := v.values[id]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value), VersionId: aws.String(id)}, nil
}

func (v *fakeVault) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	id := aws.ToString(params.ClientRequestToken)
	v.values[id] = aws.ToString(params.SecretString)
	v.stages[id] = params.VersionStages
	return &secretsmanager.PutSecretValueOutput{VersionId: aws.String(id)}, nil
}

func (v *fakeVault) UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error) {
	stage := aws.ToString(params.VersionStage)
	if from := aws.ToString(params.RemoveFromVersionId); from != "" {
		v.stages[from] = without(v.stages[from], stage)
	}
	if to := aws.ToString(params.MoveToVersionId); to != "" {
		if _, ok := v.versionWith(stage); ok && params.RemoveFromVersionId == nil {
			return nil, errors.New("InvalidParameterException: stage attached to another version")
		}
		v.stages[to] = append(without(v.stages[to], stagePending), stage)
	}
	return &secretsmanager.UpdateSecretVersionStageOutput{}, nil
}

func (v *fakeVault) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	return &secretsmanager.DescribeSecretOutput{VersionIdsToStages: v.stages}, nil
}

func without(stages []string, stage string) []string {
	var out []string
	for _, s := range stages {
		if s != stage {
			out = append(out, s)
		}
	}
	return out
}

func currentVersions(t *testing.T, v *fakeVault) []SecretVersion {
	t.Helper()
	id, ok := v.versionWith(stageCurrent)
	require.True(t, ok)
	var versions []SecretVersion
	require.NoError(t, json.Unmarshal([]byte(v.values[id]), &versions))
	return versions
}

func marshalVersions(t *testing.T, versions ...SecretVersion) string {
	t.Helper()
	data, err := json.Marshal(versions)
	require.NoError(t, err)
	return string(data)
}

func TestNewSessionKeyVersion(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		version, err := NewSessionKeyVersion(now)
		require.NoError(t, err)

		decoded, err := base64.StdEncoding.DecodeString(version.Secret)
		require.NoError(t, err)
		assert.Len(t, decoded, SessionKeyLength)
		assert.Equal(t, "2026-10-14T09:00:00Z", version.Timestamp)

		assert.False(t, seen[version.Secret], "duplicate key generated")
		seen[version.Secret] = true
	}
}

func TestKeyRotator_KeepsThreeVersions(t *testing.T) {
	vault := newFakeVault(marshalVersions(t,
		SecretVersion{Secret: key(1), Timestamp: "2026-10-13T00:00:00Z"},
		SecretVersion{Secret: key(2), Timestamp: "2026-10-12T00:00:00Z"},
		SecretVersion{Secret: key(3), Timestamp: "2026-10-11T00:00:00Z"},
	))
	rotator := NewKeyRotator(vault)

	require.NoError(t, rotator.Rotate(context.Background(), "session-keys", "r1"))

	versions := currentVersions(t, vault)
	require.Len(t, versions, DefaultKeyVersions)
	assert.NotEqual(t, key(1), versions[0].Secret)
	assert.Equal(t, key(1), versions[1].Secret)
	assert.Equal(t, key(2), versions[2].Secret)

	assert.Empty(t, vault.stages["v0"], "old version loses AWSCURRENT")
	assert.Equal(t, []string{stageCurrent}, vault.stages["r1"])
}

func TestKeyRotator_DiscardsInvalidVersions(t *testing.T) {
	vault := newFakeVault(marshalVersions(t,
		SecretVersion{Secret: "not base64!"},
		SecretVersion{Secret: base64.StdEncoding.EncodeToString([]byte("short"))},
		SecretVersion{Secret: key(4)},
	))
	rotator := NewKeyRotator(vault)

	require.NoError(t, rotator.Rotate(context.Background(), "session-keys", "r1"))

	versions := currentVersions(t, vault)
	require.Len(t, versions, 2)
	assert.Equal(t, key(4), versions[1].Secret)
}

func TestKeyRotator_StartsFresh(t *testing.T) {
	tests := map[string]string{
		"missing": "",
		"corrupt": "{not json",
	}
	for name, current := range tests {
		t.Run(name, func(t *testing.T) {
			vault := newFakeVault(current)
			rotator := NewKeyRotator(vault)

			require.NoError(t, rotator.Rotate(context.Background(), "session-keys", "r1"))

			versions := currentVersions(t, vault)
			require.Len(t, versions, 1)
			keys := DecodeVersions(context.Background(), versions)
			assert.Len(t, keys, 1)
		})
	}
}

func TestKeyRotator_FinishIsIdempotent(t *testing.T) {
	vault := newFakeVault(marshalVersions(t, SecretVersion{Secret: key(1)}))
	rotator := NewKeyRotator(vault)
	ctx := context.Background()

	require.NoError(t, rotator.Rotate(ctx, "session-keys", "r1"))
	require.NoError(t, rotator.HandleRotation(ctx, RotationEvent{Step: "finishSecret", SecretId: "session-keys", ClientRequestToken: "r1"}))
	assert.Equal(t, []string{stageCurrent}, vault.stages["r1"])
}

func TestKeyRotator_TestSecretRejectsBadPending(t *testing.T) {
	vault := newFakeVault("")
	vault.values["r1"] = marshalVersions(t, SecretVersion{Secret: "c2hvcnQ="})
	vault.stages["r1"] = []string{stagePending}

	err := NewKeyRotator(vault).HandleRotation(context.Background(), RotationEvent{
		Step:               "testSecret",
		SecretId:           "session-keys",
		ClientRequestToken: "r1",
	})
	assert.Error(t, err)
}

func TestKeyRotator_UnknownStep(t *testing.T) {
	err := NewKeyRotator(newFakeVault("")).HandleRotation(context.Background(), RotationEvent{Step: "bogus"})
	assert.EqualError(t, err, "unknown rotation step: bogus")
}

func TestKeyRotator_CancelRotation(t *testing.T) {
	vault := newFakeVault(marshalVersions(t, SecretVersion{Secret: key(1)}))
	rotator := NewKeyRotator(vault)
	ctx := context.Background()

	require.NoError(t, rotator.HandleRotation(ctx, RotationEvent{Step: "createSecret", SecretId: "session-keys", ClientRequestToken: "r1"}))
	require.NoError(t, rotator.CancelRotation(ctx, "session-keys", "r1"))
	assert.Empty(t, vault.stages["r1"])
	assert.Equal(t, []string{stageCurrent}, vault.stages["v0"])
}
