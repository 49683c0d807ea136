package dynamodb

// Config holds DynamoDB connection and table settings.
type Config struct {
	TableName    string        `yaml:"tableName" json:"tableName"`
	Region       string        `yaml:"region" json:"region"`
	Endpoint     string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	CreateTable  bool          `yaml:"createTable,omitempty" json:"createTable,omitempty"`
	HistoryLimit int           `yaml:"historyLimit,omitempty" json:"historyLimit,omitempty"`
	Breaker      BreakerConfig `yaml:"breaker" json:"breaker"`
}

// BreakerConfig controls the circuit breaker wrapped around the DynamoDB client.
type BreakerConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	FailThreshold uint32 `yaml:"failThreshold,omitempty" json:"failThreshold,omitempty"`
	Cooldown      string `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
}
