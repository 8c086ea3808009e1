package model

// ================ Config ================

// BreakerConfig controls the per-service circuit breaker.
type BreakerConfig struct {
	FailureThreshold int `envconfig:"BREAKER_FAILURE_THRESHOLD" default:"3"`
	RecoveryTimeout  int `envconfig:"BREAKER_RECOVERY_TIMEOUT_SECONDS" default:"60"`
}

// AssistantConfig configures the remote Assistants service client.
type AssistantConfig struct {
	APIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	BaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Model   string `envconfig:"ASSISTANT_MODEL" default:"gpt-4-turbo"`

	// Pre-provisioned assistant ids per task type. Empty values fall back to
	// creating an assistant on demand.
	CorrectionAssistantID string `envconfig:"CORRECTION_ASSISTANT_ID"`
	ExercisesAssistantID  string `envconfig:"EXERCISES_ASSISTANT_ID"`
	DefaultAssistantID    string `envconfig:"DEFAULT_ASSISTANT_ID"`

	RequestTimeout int `envconfig:"ASSISTANT_REQUEST_TIMEOUT_SECONDS" default:"60"`
}

// RunConfig controls the generation-job polling loop.
type RunConfig struct {
	MaxWait            int     `envconfig:"RUN_MAX_WAIT_SECONDS" default:"180"`
	InitialPollSeconds float64 `envconfig:"RUN_INITIAL_POLL_SECONDS" default:"1"`
	MaxPollSeconds     float64 `envconfig:"RUN_MAX_POLL_SECONDS" default:"5"`
	PollGrowthFactor   float64 `envconfig:"RUN_POLL_GROWTH_FACTOR" default:"1.5"`
	CancelSettleWait   int     `envconfig:"RUN_CANCEL_SETTLE_SECONDS" default:"2"`
}

// ThreadConfig controls thread reuse, validation and compaction.
type ThreadConfig struct {
	MaxMessages        int `envconfig:"THREAD_MAX_MESSAGES" default:"15"`
	MaxAgeHours        int `envconfig:"THREAD_MAX_AGE_HOURS" default:"24"`
	MaxEstimatedSizeKB int `envconfig:"THREAD_MAX_SIZE_KB" default:"50"`
	MessageSizeKB      int `envconfig:"THREAD_MESSAGE_SIZE_KB" default:"3"`
	KeepExchanges      int `envconfig:"THREAD_KEEP_EXCHANGES" default:"3"`
	// ProfileRefreshEvery issues a profile context-refresh message into a
	// reused thread every N requests.
	ProfileRefreshEvery int `envconfig:"THREAD_PROFILE_REFRESH_EVERY" default:"10"`
}

// RetryConfig parameterises the shared retry combinator. Delays grow
// exponentially from BaseDelay and are capped at MaxDelay.
type RetryConfig struct {
	MaxAttempts int     `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay   float64 `envconfig:"RETRY_BASE_DELAY_SECONDS" default:"1"`
	MaxDelay    float64 `envconfig:"RETRY_MAX_DELAY_SECONDS" default:"60"`
}
