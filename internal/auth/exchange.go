package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	apperrors "github.com/savaki/campus-portal/internal/errors"
	"github.com/savaki/campus-portal/internal/metrics"
	"golang.org/x/oauth2"
)

// ProviderTokens are the tokens returned by the token endpoint.
type ProviderTokens struct {
	IDToken     string
	AccessToken string
}

// ExchangeCode trades an authorization code for provider tokens with a
// single POST to the token endpoint. It never retries.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (tokens *ProviderTokens, err error) {
	if code == "" {
		return nil, apperrors.ErrMissingCode
	}

	start := time.Now()
	defer func() { metrics.ObserveProvider("exchange", start, err) }()

	ctx, cancel := a.providerContext(ctx)
	defer cancel()

	token, err := a.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	idToken, _ := token.Extra("id_token").(string)
	return &ProviderTokens{
		IDToken:     idToken,
		AccessToken: token.AccessToken,
	}, nil
}

// classifyExchangeError maps token endpoint failures onto ErrProviderRejected
// (4xx, bad responses) and ErrNetwork (5xx, transport, deadline).
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if status >= 500 {
			return fmt.Errorf("token endpoint returned %d: %w", status, apperrors.ErrNetwork)
		}
		return fmt.Errorf("token endpoint returned %d (%s): %w", status, retrieveErr.ErrorCode, apperrors.ErrProviderRejected)
	}
	if isTransportError(err) {
		return fmt.Errorf("token endpoint: %v: %w", err, apperrors.ErrNetwork)
	}
	return fmt.Errorf("token endpoint: %v: %w", err, apperrors.ErrProviderRejected)
}

// isTransportError reports connection failures and timeouts.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
