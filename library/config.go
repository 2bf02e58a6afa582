package library

// Config holds the library configuration.
type Config struct {
	DBPath string `json:"db_path" yaml:"db_path"`

	// RecommendCount is how many prompts each recommendation list holds.
	// Default: 3
	RecommendCount int `json:"recommend_count" yaml:"recommend_count"`

	// PreviewRunes caps preview length. Default: 300
	PreviewRunes int `json:"preview_runes" yaml:"preview_runes"`
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "promptdock.db"
	}
	if c.RecommendCount <= 0 {
		c.RecommendCount = 3
	}
	if c.PreviewRunes <= 0 {
		c.PreviewRunes = 300
	}
}
