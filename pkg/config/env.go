package config

// Environment names recognized by the service.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike reports whether the environment requires strict,
// fail-fast configuration validation.
func IsProductionLike(environment string) bool {
	return environment == EnvProduction || environment == EnvStaging
}
