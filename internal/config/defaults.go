package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == nil {
		o := 200
		cfg.Chunking.ChunkOverlap = &o
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hashing"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = 30
	}
	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = "cosine"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = "gemini"
	}
	if cfg.Chat.APIKeyEnv == "" {
		switch cfg.Chat.Provider {
		case "gemini":
			cfg.Chat.APIKeyEnv = "GOOGLE_API_KEY"
		case "openai":
			cfg.Chat.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.Chat.Temperature == nil {
		t := 0.7
		cfg.Chat.Temperature = &t
	}
	if cfg.Chat.TimeoutSecs == 0 {
		cfg.Chat.TimeoutSecs = 120
	}
	if cfg.Upload.MaxFiles == 0 {
		cfg.Upload.MaxFiles = 20
	}
	if cfg.Upload.MaxFileBytes == 0 {
		cfg.Upload.MaxFileBytes = 32 << 20
	}
	if cfg.Upload.Extensions == nil {
		cfg.Upload.Extensions = []string{".pdf", ".docx", ".odt", ".rtf", ".xlsx", ".pptx", ".odp", ".ods", ".txt", ".md", ".rst"}
	}
	if cfg.Upload.OnExtractError == "" {
		cfg.Upload.OnExtractError = "skip"
	}
	if cfg.Transcript.Driver == "" {
		cfg.Transcript.Driver = "memory"
	}
	if cfg.Transcript.Driver == "sqlite" && cfg.Transcript.DSN == "" {
		cfg.Transcript.DSN = ":memory:"
	}
	if cfg.Watch.DebounceMillis == 0 {
		cfg.Watch.DebounceMillis = 500
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
