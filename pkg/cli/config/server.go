package config

import "github.com/urfave/cli/v3"

// Server holds API server configuration
type Server struct {
	Addr  string
	Token string
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("CATAPULT_ADDR"),
		},
		&cli.StringFlag{
			Name:        "api-token",
			Usage:       "Bearer token required by the API (empty leaves it open)",
			Destination: &c.Token,
			Sources:     cli.EnvVars("CATAPULT_API_TOKEN"),
		},
	}
}
