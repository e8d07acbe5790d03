package config

import (
	"strings"
	"time"
)

type Config struct {
	Port string `json:"port"`

	WorkspaceRoot string `json:"workspace_root"`
	MaxFileBytes  int64  `json:"max_file_bytes"`
	SearchWorkers int    `json:"search_workers"`
	WatchEnabled  bool   `json:"watch_enabled"`

	Shell       string `json:"shell"`
	MaxSessions int    `json:"max_sessions"`

	Generator GeneratorConfig `json:"generator"`

	// AllowOrigins 为空时允许所有来源
	AllowOrigins []string `json:"allow_origins"`
}

type GeneratorConfig struct {
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"-"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
}

// SplitOrigins 展开逗号分隔的来源列表，兼容配置文件中的数组与环境变量中的 "a,b"
func SplitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, v := range values {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	return origins
}
