// Package config loads proxy settings from flags, environment variables,
// and an optional dotenv-style file, then loads the admin job template and
// profile map from YAML.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"
)

// DefaultJobTTLSecondsAfterFinished is stamped onto every job when
// KbatchJobTTLSecondsAfterFinished is left unset.
const DefaultJobTTLSecondsAfterFinished = 3600

// DefaultJobMaxCodeBytes bounds the size of a base64-decoded code blob
// (§5: "bound the code blob size at a configurable maximum, default 1 MiB").
const DefaultJobMaxCodeBytes = 1 << 20

// DefaultRequiredScope is the scope an authenticated token must carry.
const DefaultRequiredScope = "access:servers"

// Config holds every recognized setting (spec.md §4.9), plus the ambient
// additions needed to actually run a server (identity service location,
// listen address, cluster auth mode).
type Config struct {
	JupyterHubAPIToken               string
	KbatchPrefix                     string
	KbatchInitLogging                bool
	KbatchJobTemplateFile            string
	KbatchProfileFile                string
	KbatchJobTTLSecondsAfterFinished int32
	KbatchJobExtraEnv                map[string]string
	KbatchCreateUserNamespace        bool
	KbatchJobMaxCodeBytes            int64

	IdentityServiceURL string
	RequiredScope      string

	InCluster      bool
	KubeconfigPath string
	QPSLimit       float32
	BurstLimit     int

	HTTPAddr string

	JobTemplate map[string]interface{}
	Profiles    map[string]interface{}
}

// Defaults returns a Config populated with the documented defaults.
func Defaults() *Config {
	return &Config{
		KbatchInitLogging:                true,
		KbatchJobTTLSecondsAfterFinished: DefaultJobTTLSecondsAfterFinished,
		KbatchCreateUserNamespace:        true,
		KbatchJobMaxCodeBytes:            DefaultJobMaxCodeBytes,
		RequiredScope:                    DefaultRequiredScope,
		QPSLimit:                         20.0,
		BurstLimit:                       30,
		HTTPAddr:                         ":8000",
	}
}

// loadEnvIfEmpty loads an environment variable into target if target is
// still its zero value, matching the teacher's flag-wins-then-env-then-
// default resolution order (cmd/serve_config.go).
func loadEnvIfEmpty(target *string, envKey string) {
	if *target == "" {
		*target = os.Getenv(envKey)
	}
}

// LoadEnv applies KBATCH_*-prefixed (and the one unprefixed
// JUPYTERHUB_API_TOKEN) environment variables, optionally seeded first from
// a dotenv-style file at settingsPath (KBATCH_SETTINGS_PATH) — the Go
// analogue of the original implementation's Pydantic `env_file` setting.
// String fields and KbatchJobExtraEnv are filled only while still empty, so
// a value already set by a flag is kept; the boolean and integer settings
// are overwritten whenever their variable is set.
func (c *Config) LoadEnv(settingsPath string) error {
	if settingsPath == "" {
		settingsPath = os.Getenv("KBATCH_SETTINGS_PATH")
	}
	if settingsPath != "" {
		if err := godotenv.Load(settingsPath); err != nil {
			return fmt.Errorf("load settings file %s: %w", settingsPath, err)
		}
	}

	loadEnvIfEmpty(&c.JupyterHubAPIToken, "JUPYTERHUB_API_TOKEN")
	loadEnvIfEmpty(&c.KbatchPrefix, "KBATCH_PREFIX")
	loadEnvIfEmpty(&c.KbatchJobTemplateFile, "KBATCH_JOB_TEMPLATE_FILE")
	loadEnvIfEmpty(&c.KbatchProfileFile, "KBATCH_PROFILE_FILE")
	loadEnvIfEmpty(&c.IdentityServiceURL, "KBATCH_IDENTITY_SERVICE_URL")

	if v := os.Getenv("KBATCH_INIT_LOGGING"); v != "" {
		c.KbatchInitLogging = v == "true"
	}
	if v := os.Getenv("KBATCH_CREATE_USER_NAMESPACE"); v != "" {
		c.KbatchCreateUserNamespace = v == "true"
	}
	if v := os.Getenv("KBATCH_JOB_TTL_SECONDS_AFTER_FINISHED"); v != "" {
		var n int32
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			c.KbatchJobTTLSecondsAfterFinished = n
		}
	}
	if v := os.Getenv("KBATCH_JOB_MAX_CODE_BYTES"); v != "" {
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			c.KbatchJobMaxCodeBytes = n
		}
	}
	if c.KbatchJobExtraEnv == nil {
		if v := os.Getenv("KBATCH_JOB_EXTRA_ENV"); v != "" {
			var extraEnv map[string]string
			if err := json.Unmarshal([]byte(v), &extraEnv); err != nil {
				return fmt.Errorf("parse KBATCH_JOB_EXTRA_ENV: %w", err)
			}
			c.KbatchJobExtraEnv = extraEnv
		}
	}

	return nil
}

// LoadTemplateAndProfiles decodes the admin job-template and profile-map
// YAML files, if configured. Parse errors are returned as-is; the caller
// is expected to treat them as fatal at startup (spec.md §4.9).
func (c *Config) LoadTemplateAndProfiles() error {
	if c.KbatchJobTemplateFile != "" {
		tpl, err := decodeYAMLFile(c.KbatchJobTemplateFile)
		if err != nil {
			return fmt.Errorf("load job template file: %w", err)
		}
		c.JobTemplate = tpl
	}

	if c.KbatchProfileFile != "" {
		profiles, err := decodeYAMLFile(c.KbatchProfileFile)
		if err != nil {
			return fmt.Errorf("load profile file: %w", err)
		}
		c.Profiles = profiles
	}

	return nil
}

func decodeYAMLFile(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}
