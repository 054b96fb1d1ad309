package env

import (
	"os"

	"github.com/joho/godotenv"
)

var Env map[string]string

// GetEnv resolves a key from the loaded .env map first, then the OS
// environment (Docker/tests), then the supplied default.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the first .env file found walking up from the working
// directory. Missing files are tolerated so containerized deployments can run
// on OS environment alone.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../.env",
		"../../.env",
	}

	for _, envFile := range envFiles {
		if loaded, err := godotenv.Read(envFile); err == nil {
			Env = loaded
			return
		}
	}
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
