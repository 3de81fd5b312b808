package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/di"
	"github.com/savaki/campus-portal/internal/server"
	"github.com/savaki/campus-portal/internal/services"
	"github.com/urfave/cli/v2"
)

// serveAction starts a local HTTP server for testing
func serveAction(c *cli.Context) error {
	port := c.String("port")
	addr := fmt.Sprintf(":%s", port)
	env := c.String("env")

	if c.Bool("disable-ssm") {
		if err := os.Setenv("DISABLE_SSM", "true"); err != nil {
			return err
		}
	}

	callbackURL := c.String("callback-url")
	if callbackURL == "" {
		callbackURL = server.BuildCallbackURL("", port)
	}

	container, err := di.New(env, di.WithCallbackURL(callbackURL))
	if err != nil {
		return fmt.Errorf("failed to setup DI container: %w", err)
	}

	logger := di.MustGet[zerolog.Logger](container)
	handler := server.NewHandler(container)

	logger.Info().
		Str("addr", addr).
		Str("env", env).
		Str("callback_url", callbackURL).
		Msg("Starting HTTP server")

	srv := &http.Server{
		Addr:    addr,
		Handler: server.Wrap(logger, env, handler.Router()),
	}

	return srv.ListenAndServe()
}

// lambdaCallbackURL returns the redirect URI override for Lambda: empty when
// the redirect URI is configured, otherwise derived from the custom domain.
func lambdaCallbackURL(ctx context.Context, env string) (string, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	var paramStore services.ParameterStore
	if ssmClient := di.ProvideSSMClient(cfg); ssmClient != nil {
		paramStore = services.NewSSMParameterStore(ssmClient, env)
	} else {
		paramStore = services.NewEnvParameterStore(env)
	}

	appConfig, err := paramStore.GetConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.RedirectURI != "" {
		return "", nil
	}
	return server.BuildCallbackURL(appConfig.CustomDomain, ""), nil
}

func main() {
	logger := di.ProvideLogger().With().Str("lambda", "server").Logger()

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		env := server.Environment()
		if env == "" {
			logger.Error().Msg("ENV or ENVIRONMENT variable is required")
			os.Exit(1)
		}

		ctx := logger.WithContext(context.Background())
		callbackURL, err := lambdaCallbackURL(ctx, env)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to resolve callback URL")
			os.Exit(1)
		}

		logger.Info().
			Str("env", env).
			Str("callback_url", callbackURL).
			Msg("Initializing Lambda handler")

		container, err := di.New(env, di.WithCallbackURL(callbackURL))
		if err != nil {
			logger.Error().Err(err).Msg("Failed to setup DI container")
			os.Exit(1)
		}

		handler := server.NewHandler(container)
		httpHandler := server.Wrap(logger, env, handler.Router())

		// Use AWS Lambda HTTP adapter for API Gateway V2
		lambda.Start(httpadapter.NewV2(httpHandler).ProxyWithContext)
		return
	}

	app := &cli.App{
		Name:  "server",
		Usage: "campus portal login gate",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Environment name (for stripping path prefix and SSM lookups)",
				EnvVars: []string{"ENV", "ENVIRONMENT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start local HTTP server for testing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "port",
						Usage: "Port to listen on",
						Value: "8080",
					},
					&cli.StringFlag{
						Name:    "callback-url",
						Usage:   "OAuth redirect URI, defaults to http://localhost:{port}/login/callback",
						EnvVars: []string{"CALLBACK_URL"},
					},
					&cli.BoolFlag{
						Name:    "disable-ssm",
						Usage:   "Disable AWS Systems Manager Parameter Store (use environment variables)",
						EnvVars: []string{"DISABLE_SSM"},
					},
				},
				Action: serveAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}
}
