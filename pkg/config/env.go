package config

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

func isProductionLike(env string) bool {
	return env == EnvStaging || env == EnvProduction
}

// IsProductionLike reports whether the loaded configuration targets staging
// or production, where optional backends become mandatory.
func (c *Config) IsProductionLike() bool {
	return isProductionLike(c.Server.Environment)
}
