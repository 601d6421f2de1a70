package config

import "path/filepath"

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:  "~/.wabot",
			LogLevel: "info",
			Debug:    false,
		},
		Intake: IntakeConfig{
			Host: "0.0.0.0",
			Port: 8088,
		},
		Gateway: GatewayConfig{
			BaseURL:        "http://localhost:3000/",
			TimeoutSeconds: 30,
		},
		Chat: ChatConfig{
			AdminMarker:   "admin",
			Timezone:      "Asia/Karachi",
			MaxConcurrent: 8,
		},
		Resolver: ResolverConfig{
			Enabled:         true,
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			TimeoutSeconds:  30,
			MaxHistoryPairs: 5,
		},
		History: HistoryConfig{
			DBPath:        filepath.Join("~/.wabot", "wabot.db"),
			RetentionDays: 90,
			SweepSchedule: "@hourly",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
