// Package config holds the client's process-wide settings.
//
// The config package handles:
//   - The fixed external endpoints the client talks to (auth popup, trusted
//     message origin, home page, play socket) and the popup geometry
//   - Endpoint validation for development overrides
//   - Loading endpoint overrides from a JSON file
//   - A single nullable settings value shared across the process
//
// Endpoints:
//
// DefaultEndpoints returns the production constants. The command line may
// override them for local development; everything else in the client takes an
// Endpoints value and never reads the environment itself.
//
// Settings:
//
// The settings value starts out nil. It can be replaced with Set or derived
// from its previous value with Update. The command line records the resolved
// endpoints in it at startup; the join flow itself never reads it.
//
// Usage:
//
//	endpoints := config.DefaultEndpoints()
//	if err := endpoints.Validate(); err != nil {
//		log.Fatal().Err(err).Msg("bad endpoints")
//	}
//
//	config.Set(map[string]any{"theme": "dark"})
//	config.Update(func(prev map[string]any) map[string]any {
//		return nil
//	})
package config
