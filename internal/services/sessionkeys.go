package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
)

// SessionKeyLength is the required length of a decoded signing key.
const SessionKeyLength = 32

// SecretVersion represents a single rotated secret version
type SecretVersion struct {
	Secret    string `json:"secret"`
	Timestamp string `json:"timestamp"`
}

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SessionKeyService provides cookie signing keys from Secrets Manager
type SessionKeyService struct {
	client     SecretsManagerAPI
	secretName string
	onceFunc   func() ([][]byte, error)
}

// NewSessionKeyService creates a new session key service
func NewSessionKeyService(client SecretsManagerAPI, secretName string) *SessionKeyService {
	s := &SessionKeyService{
		client:     client,
		secretName: secretName,
	}

	// keys are fetched once per process; lambda recycling picks up rotations
	s.onceFunc = sync.OnceValues(func() ([][]byte, error) {
		return s.fetchSessionKeys(context.Background())
	})

	return s
}

// GetSessionKeys returns the current signing keys, newest first.
func (s *SessionKeyService) GetSessionKeys(ctx context.Context) ([][]byte, error) {
	return s.onceFunc()
}

func (s *SessionKeyService) fetchSessionKeys(ctx context.Context) ([][]byte, error) {
	logger := zerolog.Ctx(ctx)

	logger.Info().Str("secret_name", s.secretName).Msg("Fetching session keys from Secrets Manager")

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", s.secretName, err)
	}

	if result.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", s.secretName)
	}

	var versions []SecretVersion
	if err := json.Unmarshal([]byte(*result.SecretString), &versions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret versions: %w", err)
	}

	keys := DecodeVersions(ctx, versions)
	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid session keys found in secret %s", s.secretName)
	}

	logger.Info().Int("key_count", len(keys)).Msg("Successfully loaded session keys")

	return keys, nil
}

// DecodeVersions decodes rotated secret versions, skipping any that are not
// base64 or not SessionKeyLength bytes long. Order is preserved.
func DecodeVersions(ctx context.Context, versions []SecretVersion) [][]byte {
	valid := ValidVersions(ctx, versions)
	keys := make([][]byte, 0, len(valid))
	for _, version := range valid {
		decoded, _ := base64.StdEncoding.DecodeString(version.Secret)
		keys = append(keys, decoded)
	}
	return keys
}

// ValidVersions returns the versions holding a base64 SessionKeyLength key.
func ValidVersions(ctx context.Context, versions []SecretVersion) []SecretVersion {
	logger := zerolog.Ctx(ctx)

	valid := make([]SecretVersion, 0, len(versions))
	for i, version := range versions {
		decoded, err := base64.StdEncoding.DecodeString(version.Secret)
		if err != nil {
			logger.Warn().
				Int("index", i).
				Str("timestamp", version.Timestamp).
				Err(err).
				Msg("Failed to decode secret version, skipping")
			continue
		}

		if len(decoded) != SessionKeyLength {
			logger.Warn().
				Int("index", i).
				Int("length", len(decoded)).
				Str("timestamp", version.Timestamp).
				Msg("Secret version has invalid length, skipping")
			continue
		}

		valid = append(valid, version)
	}
	return valid
}

// ParseSessionKeys parses a comma separated list of base64 keys as used by
// the SESSION_KEYS environment variable.
func ParseSessionKeys(ctx context.Context, csv string) [][]byte {
	var versions []SecretVersion
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			versions = append(versions, SecretVersion{Secret: part})
		}
	}
	return DecodeVersions(ctx, versions)
}
