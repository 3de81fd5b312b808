package di

// CallbackURL overrides the configured redirect URI when non-empty. Used by
// the local server, whose URL depends on the port.
type CallbackURL string

// Option is a function that configures the dependency injection container.
type Option func(*options)

func WithCallbackURL(url string) Option {
	return func(opts *options) {
		opts.callbackURL = CallbackURL(url)
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func() *http.Client { return &http.Client{} },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	callbackURL CallbackURL
	providers   []any
}
