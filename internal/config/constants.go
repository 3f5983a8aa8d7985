package config

import "time"

const (
	defaultNetwork     = "ethereum"
	defaultConcurrency = 10
	defaultMaxRecords  = 100_000
	defaultPageSize    = 1000
	defaultOutput      = "transactions.txt"
	defaultDirection   = "from"
	defaultTimeout     = 30 * time.Second
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"

	configName = "config"
	configType = "yaml"
	envPrefix  = "ALCHSCAN"
)

// Direction values accepted by the direction key.
const (
	DirectionFrom = "from"
	DirectionTo   = "to"
	DirectionBoth = "both"
)
