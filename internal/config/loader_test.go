package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/gaeliam100/unravel-sql-game-back/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "memory")
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("UNRAVEL_ADDR", ":8080")
			_ = os.Setenv("UNRAVEL_STORE_DRIVER", "postgres")
			_ = os.Setenv("UNRAVEL_DATABASE_URL", "postgres://game@localhost/unravel")
			_ = os.Setenv("UNRAVEL_LEVEL_TOP_N", "10")
			_ = os.Setenv("UNRAVEL_BCRYPT_COST", "4")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, "postgres")
				convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://game@localhost/unravel")
				convey.So(cfg.LevelTopN, convey.ShouldEqual, 10)
				convey.So(cfg.BcryptCost, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempFile("unravel-config-*.yaml", `
# file values
addr: ":9090"
log_format: json
dedupe_size: 600000
global_top_n: 10
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("UNRAVEL_CONFIG", tmpFile)
			_ = os.Setenv("UNRAVEL_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")      // env
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")  // file
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 600000) // file
				convey.So(cfg.GlobalTopN, convey.ShouldEqual, 10)     // file
				convey.So(cfg.LevelTopN, convey.ShouldEqual, 5)       // default
			})
		})

		convey.Convey("When a .env file is provided", func() {
			envFile := createTempFile("unravel-*.env", "UNRAVEL_ADDR=:7070\nUNRAVEL_LOG_LEVEL=debug\n")
			defer func() { _ = os.Remove(envFile) }()

			_ = os.Setenv("UNRAVEL_ENV_FILE", envFile)
			_ = os.Setenv("UNRAVEL_LOG_LEVEL", "warn")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then its values fill the environment without overriding it", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "warn")
			})
		})

		convey.Convey("When the .env file named explicitly is missing", func() {
			_ = os.Setenv("UNRAVEL_ENV_FILE", "/non/existent/.env")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempFile("unravel-config-*.yaml", `invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("UNRAVEL_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("UNRAVEL_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("UNRAVEL_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("UNRAVEL_DEDUPE_SIZE", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"UNRAVEL_CONFIG",
		"UNRAVEL_ENV_FILE",
		"UNRAVEL_ADDR",
		"UNRAVEL_LOG_LEVEL",
		"UNRAVEL_STORE_DRIVER",
		"UNRAVEL_DATABASE_URL",
		"UNRAVEL_LEVEL_TOP_N",
		"UNRAVEL_BCRYPT_COST",
		"UNRAVEL_DEDUPE_SIZE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempFile(pattern, content string) string {
	tmpFile, err := os.CreateTemp("", pattern)
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
