package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
)

// DefaultKeyVersions is how many signing keys a rotation keeps: the new key
// plus the two before it, so cookies signed before a rotation still verify.
const DefaultKeyVersions = 3

const (
	stageCurrent = "AWSCURRENT"
	stagePending = "AWSPENDING"
)

// RotationEvent is the Secrets Manager rotation lambda payload.
type RotationEvent struct {
	Step               string `json:"Step"`
	Token              string `json:"Token"`
	SecretId           string `json:"SecretId"`
	ClientRequestToken string `json:"ClientRequestToken"`
}

// SecretsRotationAPI is the subset of the Secrets Manager client used by rotation.
type SecretsRotationAPI interface {
	SecretsManagerAPI
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// KeyRotator rotates the session signing key secret.
type KeyRotator struct {
	client SecretsRotationAPI
	keep   int
	now    func() time.Time
}

func NewKeyRotator(client SecretsRotationAPI) *KeyRotator {
	return &KeyRotator{
		client: client,
		keep:   DefaultKeyVersions,
		now:    time.Now,
	}
}

// NewSessionKeyVersion generates a random 256-bit key stamped with now.
func NewSessionKeyVersion(now time.Time) (SecretVersion, error) {
	key := make([]byte, SessionKeyLength)
	if _, err := rand.Read(key); err != nil {
		return SecretVersion{}, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return SecretVersion{
		Secret:    base64.StdEncoding.EncodeToString(key),
		Timestamp: now.UTC().Format(time.RFC3339),
	}, nil
}

func (k *KeyRotator) HandleRotation(ctx context.Context, event RotationEvent) error {
	switch event.Step {
	case "createSecret":
		return k.createSecret(ctx, event)
	case "setSecret":
		// signing keys live only in the secret
		return nil
	case "testSecret":
		return k.testSecret(ctx, event)
	case "finishSecret":
		return k.finishSecret(ctx, event)
	default:
		return fmt.Errorf("unknown rotation step: %s", event.Step)
	}
}

// Rotate runs every step for a manual rotation.
func (k *KeyRotator) Rotate(ctx context.Context, secretID, clientRequestToken string) error {
	for _, step := range []string{"createSecret", "setSecret", "testSecret", "finishSecret"} {
		event := RotationEvent{
			Step:               step,
			SecretId:           secretID,
			ClientRequestToken: clientRequestToken,
		}
		if err := k.HandleRotation(ctx, event); err != nil {
			return fmt.Errorf("%s step failed: %w", step, err)
		}
	}
	return nil
}

// createSecret stages a new key ahead of the valid current keys.
func (k *KeyRotator) createSecret(ctx context.Context, event RotationEvent) error {
	logger := zerolog.Ctx(ctx)

	newVersion, err := NewSessionKeyVersion(k.now())
	if err != nil {
		return err
	}

	var versions []SecretVersion
	current, err := k.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     &event.SecretId,
		VersionStage: aws.String(stageCurrent),
	})
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("Failed to get current secret - starting fresh")
	case current.SecretString == nil || *current.SecretString == "":
		logger.Warn().Msg("Secret is empty - starting fresh")
	default:
		if err := json.Unmarshal([]byte(*current.SecretString), &versions); err != nil {
			logger.Warn().Err(err).Msg("Current secret is corrupt (invalid JSON) - overwriting with fresh secret")
			versions = nil
		}
		versions = ValidVersions(ctx, versions)
	}

	versions = append([]SecretVersion{newVersion}, versions...)
	if len(versions) > k.keep {
		versions = versions[:k.keep]
	}

	secretJSON, err := json.Marshal(versions)
	if err != nil {
		return fmt.Errorf("failed to marshal secret: %w", err)
	}

	logger.Info().Int("version_count", len(versions)).Msg("Creating secret with valid versions")

	_, err = k.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           &event.SecretId,
		SecretString:       aws.String(string(secretJSON)),
		ClientRequestToken: &event.ClientRequestToken,
		VersionStages:      []string{stagePending},
	})
	if err != nil {
		return fmt.Errorf("failed to put secret value: %w", err)
	}

	return nil
}

// testSecret requires the pending secret to lead with a usable key.
func (k *KeyRotator) testSecret(ctx context.Context, event RotationEvent) error {
	output, err := k.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     &event.SecretId,
		VersionId:    &event.ClientRequestToken,
		VersionStage: aws.String(stagePending),
	})
	if err != nil {
		return fmt.Errorf("failed to get pending secret: %w", err)
	}
	if output.SecretString == nil {
		return fmt.Errorf("pending secret has no string value")
	}

	var versions []SecretVersion
	if err := json.Unmarshal([]byte(*output.SecretString), &versions); err != nil {
		return fmt.Errorf("pending secret is not valid JSON: %w", err)
	}
	if len(versions) == 0 {
		return fmt.Errorf("pending secret has no versions")
	}
	if len(ValidVersions(ctx, versions[:1])) != 1 {
		return fmt.Errorf("pending secret does not lead with a %d byte base64 key", SessionKeyLength)
	}

	return nil
}

// finishSecret moves AWSCURRENT to the pending version.
func (k *KeyRotator) finishSecret(ctx context.Context, event RotationEvent) error {
	described, err := k.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: &event.SecretId,
	})
	if err != nil {
		return fmt.Errorf("failed to describe secret: %w", err)
	}

	input := &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:        &event.SecretId,
		VersionStage:    aws.String(stageCurrent),
		MoveToVersionId: &event.ClientRequestToken,
	}
	for versionID, stages := range described.VersionIdsToStages {
		for _, stage := range stages {
			if stage != stageCurrent {
				continue
			}
			if versionID == event.ClientRequestToken {
				zerolog.Ctx(ctx).Info().Str("version_id", versionID).Msg("Version already current")
				return nil
			}
			input.RemoveFromVersionId = aws.String(versionID)
		}
	}

	if _, err := k.client.UpdateSecretVersionStage(ctx, input); err != nil {
		return fmt.Errorf("failed to update version stage: %w", err)
	}

	return nil
}

// CancelRotation removes AWSPENDING from versionID.
func (k *KeyRotator) CancelRotation(ctx context.Context, secretID, versionID string) error {
	_, err := k.client.UpdateSecretVersionStage(ctx, &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:            &secretID,
		VersionStage:        aws.String(stagePending),
		RemoveFromVersionId: &versionID,
	})
	if err != nil {
		return fmt.Errorf("failed to remove AWSPENDING stage: %w", err)
	}
	return nil
}
