package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/di"
	"github.com/savaki/campus-portal/internal/services"
	"github.com/urfave/cli/v2"
)

func newRotator(ctx context.Context) (*services.KeyRotator, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return services.NewKeyRotator(secretsmanager.NewFromConfig(cfg)), nil
}

func handleRotateCommand(c *cli.Context) error {
	logger := di.ProvideLogger().With().Str("lambda", "rotator").Logger()
	ctx := logger.WithContext(context.Background())

	rotator, err := newRotator(ctx)
	if err != nil {
		return err
	}

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		// Wrap handler to inject logger into context
		lambda.Start(func(ctx context.Context, event services.RotationEvent) error {
			ctx = logger.WithContext(ctx)
			zerolog.Ctx(ctx).Info().Str("step", event.Step).Str("secret_id", event.SecretId).Msg("Rotating session keys")
			return rotator.HandleRotation(ctx, event)
		})
		return nil
	}

	secretID := c.String("secret-id")
	if secretID == "" {
		return fmt.Errorf("--secret-id or SECRET_ID is required")
	}
	token := fmt.Sprintf("manual-%d", time.Now().Unix())
	if err := rotator.Rotate(ctx, secretID, token); err != nil {
		return err
	}

	fmt.Println("Rotation completed successfully")
	return nil
}

func handleCancelRotationCommand(c *cli.Context) error {
	ctx := di.ProvideLogger().WithContext(context.Background())

	rotator, err := newRotator(ctx)
	if err != nil {
		return err
	}

	secretID := c.String("secret-id")
	fmt.Printf("Cancelling pending rotation for secret: %s\n", secretID)

	if err := rotator.CancelRotation(ctx, secretID, c.String("version-id")); err != nil {
		return err
	}

	fmt.Println("Successfully cancelled pending rotation")
	return nil
}

func main() {
	app := &cli.App{
		Name:           "rotator",
		Usage:          "Secrets Manager rotation function for session signing keys",
		DefaultCommand: "rotate",
		Commands: []*cli.Command{
			{
				Name:  "rotate",
				Usage: "Manually trigger a rotation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "secret-id",
						Usage:   "Secret ID to rotate",
						EnvVars: []string{"SECRET_ID"},
					},
				},
				Action: handleRotateCommand,
			},
			{
				Name:  "cancel-rotation",
				Usage: "Cancel a pending rotation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "secret-id",
						Usage:    "Secret ID with pending rotation",
						Required: true,
						EnvVars:  []string{"SECRET_ID"},
					},
					&cli.StringFlag{
						Name:     "version-id",
						Usage:    "Version ID of the pending rotation to cancel",
						Required: true,
					},
				},
				Action: handleCancelRotationCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
