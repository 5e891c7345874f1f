package config

import "os"

func IsDebug() bool {
	return os.Getenv("RELAY_DEBUG") == "1"
}
