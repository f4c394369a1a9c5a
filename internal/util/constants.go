package util

const (
	DatabaseMySQL    = "mysql"
	DatabasePostgres = "postgres"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)
