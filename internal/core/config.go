package core

import "time"

type AppConfig interface {
	GetRuntimePath() string
	GetDatabasePath() string
	GetContextMaxMessages() int
	GetSessionTimeout() time.Duration
	GetSystemPrompt() string
	GetModelTimeout() time.Duration
	GetMaxTokens() int
	IsTelegramSelected() bool
	IsAPISelected() bool
}

type ProviderConfig interface {
	GetProvider() string
	GetModel() string
	GetTemperature() float64
}

type AccessPolicy interface {
	IsAllowed(userID int64) bool
	IsAdmin(userID int64) bool
}
