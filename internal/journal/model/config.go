package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	StateGrace         time.Duration `split_words:"true" default:"48h"`
	TranscriptTTL      time.Duration `split_words:"true" default:"72h"`
	TranscriptMaxTurns int           `split_words:"true" default:"20"`
	Timezone           string        `default:"UTC"`
}

type CacheConfig struct {
	TopicTTL time.Duration `split_words:"true" default:"5m"`
}

type MemoryConfig struct {
	URL     string        `envconfig:"URL"`
	Timeout time.Duration `default:"3s"`
	Limit   int           `default:"5"`
	Breaker BreakerConfig
}

type BreakerConfig struct {
	MaxRequests      uint32        `split_words:"true" default:"3"`
	Interval         time.Duration `default:"30s"`
	Timeout          time.Duration `default:"60s"`
	FailureThreshold float64       `split_words:"true" default:"0.6"`
	MinRequests      uint32        `split_words:"true" default:"5"`
}

type ExtractorConfig struct {
	// Strategy is "keyword" or "model".
	Strategy    string        `default:"keyword"`
	Model       string        `default:"gemini-2.5-flash-lite"`
	MaxTokens   int           `split_words:"true" default:"512"`
	Temperature float32       `default:"0"`
	Timeout     time.Duration `default:"4s"`
}
