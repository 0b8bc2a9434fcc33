package llm

import "github.com/hpungsan/weft/internal/config"

func configForTest() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://127.0.0.1:0"
	return cfg
}
