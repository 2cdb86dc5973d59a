package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/farmwatch/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
				convey.So(cfg.NotifyQueueSize, convey.ShouldEqual, 1024)
				convey.So(cfg.RemoteReasonerEnabled(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FARMWATCH_ADDR", ":9090")
			_ = os.Setenv("FARMWATCH_REASONER_API_KEY", "sk-live")
			_ = os.Setenv("FARMWATCH_REASONER_URL", "https://reasoner.example/v2/math/reason")
			_ = os.Setenv("FARMWATCH_SMS_WEBHOOK_URL", "https://sms.example/send-alert")
			_ = os.Setenv("FARMWATCH_SMS_SENDER", "+85200000000")
			_ = os.Setenv("FARMWATCH_NOTIFY_WORKER_COUNT", "8")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ReasonerAPIKey, convey.ShouldEqual, "sk-live")
				convey.So(cfg.ReasonerURL, convey.ShouldEqual, "https://reasoner.example/v2/math/reason")
				convey.So(cfg.SMSWebhookURL, convey.ShouldEqual, "https://sms.example/send-alert")
				convey.So(cfg.SMSSender, convey.ShouldEqual, "+85200000000")
				convey.So(cfg.NotifyWorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.RemoteReasonerEnabled(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":7070"
log_level: debug
log_format: json
notify_queue_size: 16
sms_webhook_url: "https://sms.example/send-alert"
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("FARMWATCH_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.NotifyQueueSize, convey.ShouldEqual, 16)
				convey.So(cfg.NotifyWorkerCount, convey.ShouldEqual, 4) // From defaults
			})
		})

		convey.Convey("When both file and environment set the same key", func() {
			tmpFile := createTempConfigFile(`
addr: ":7070"
notify_queue_size: 16
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("FARMWATCH_CONFIG", tmpFile)
			_ = os.Setenv("FARMWATCH_ADDR", ":6060")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.NotifyQueueSize, convey.ShouldEqual, 16)
			})
		})

		convey.Convey("When only PORT is set", func() {
			_ = os.Setenv("PORT", "8123")

			cfg, err := config.Load(ctx)

			convey.Convey("Then addr should be derived from it", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8123")
			})
		})

		convey.Convey("When PORT and FARMWATCH_ADDR are both set", func() {
			_ = os.Setenv("PORT", "8123")
			_ = os.Setenv("FARMWATCH_ADDR", "127.0.0.1:9000")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the explicit addr should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, "127.0.0.1:9000")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("FARMWATCH_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("FARMWATCH_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("FARMWATCH_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When loading config with a non-numeric queue size", func() {
			_ = os.Setenv("FARMWATCH_NOTIFY_QUEUE_SIZE", "lots")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the remote key is set with a broken URL", func() {
			_ = os.Setenv("FARMWATCH_REASONER_API_KEY", "sk-live")
			_ = os.Setenv("FARMWATCH_REASONER_URL", "reasoner.local")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"FARMWATCH_CONFIG",
		"FARMWATCH_ADDR",
		"FARMWATCH_LOG_LEVEL",
		"FARMWATCH_LOG_FORMAT",
		"FARMWATCH_REASONER_API_KEY",
		"FARMWATCH_REASONER_URL",
		"FARMWATCH_SMS_WEBHOOK_URL",
		"FARMWATCH_SMS_SENDER",
		"FARMWATCH_NOTIFY_QUEUE_SIZE",
		"FARMWATCH_NOTIFY_WORKER_COUNT",
		"PORT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "farmwatch-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
