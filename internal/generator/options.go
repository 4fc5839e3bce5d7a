package generator

import "log/slog"

// Settings controls document generation.
type Settings struct {
	// Family is the API family. It prefixes the server URL and namespaces
	// the mime type.
	Family string
	Logger *slog.Logger
}

// Option mutates Settings.
type Option func(*Settings)

// WithFamily sets the API family.
func WithFamily(family string) Option {
	return func(s *Settings) { s.Family = family }
}

// WithLogger sets the logger used for defects and progress. Nil keeps
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}
