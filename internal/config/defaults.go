package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kioku/data/db/notes.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/kioku/data/indices/bleve"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/kioku/data/uploads"
	}
	if cfg.Storage.ExportDir == "" {
		cfg.Storage.ExportDir = "/usr/local/var/kioku/data/exports"
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-4o-mini"
	}
	if cfg.OpenAI.MaxPromptChars == 0 {
		cfg.OpenAI.MaxPromptChars = 12000
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 60
	}
	if cfg.Ingest.MaxUploadBytes == 0 {
		cfg.Ingest.MaxUploadBytes = 10 << 20 // 10 MB
	}
	if cfg.Ingest.SummaryPreview == 0 {
		cfg.Ingest.SummaryPreview = 200
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".txt", ".md", ".docx", ".xlsx"}
	}
	if cfg.Watch.DefaultUser == "" {
		cfg.Watch.DefaultUser = "inbox"
	}
}
