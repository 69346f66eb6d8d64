package config

// APIConfig configures the HTTP server exposing the layout, the allocation
// log and /metrics.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
	// Token, when set, is required as a bearer token on the log endpoint.
	Token string `json:"token"`
}

func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}
