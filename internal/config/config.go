// Package config resolves codeprysm's on-disk settings: workspace
// roots, vector-store connection, embedding-provider selection, and
// the batch/rate tunables the indexer and hybrid searcher read at
// startup. Settings load through viper so environment variables
// (CODEPRYSM_ prefix) and .codeprysm/config.yaml compose in the usual
// precedence order; no CLI flags are bound here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigDirName is the per-workspace directory holding config.yaml
// and the lazy graph manager's manifest/partitions.
const ConfigDirName = ".codeprysm"

// RootsConfig names the repository roots a workspace indexes: a
// primary root plus optional additional roots for multi-root
// workspaces (lazygraph.RootDiscoverer).
type RootsConfig struct {
	Primary    string   `yaml:"primary,omitempty" mapstructure:"primary"`
	Additional []string `yaml:"additional,omitempty" mapstructure:"additional"`
}

// VectorStoreConfig configures the Qdrant connection.
type VectorStoreConfig struct {
	Host   string `yaml:"host" mapstructure:"host"`
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	UseTLS bool   `yaml:"use_tls,omitempty" mapstructure:"use_tls"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string  `yaml:"provider" mapstructure:"provider"` // "local", "azureml", "openai"
	RPS        float64 `yaml:"rps,omitempty" mapstructure:"rps"`
	MaxRetries int     `yaml:"max_retries,omitempty" mapstructure:"max_retries"`

	AzureMLSemanticEndpoint string `yaml:"azureml_semantic_endpoint,omitempty" mapstructure:"azureml_semantic_endpoint"`
	AzureMLCodeEndpoint     string `yaml:"azureml_code_endpoint,omitempty" mapstructure:"azureml_code_endpoint"`
	AzureMLAPIKeyEnv        string `yaml:"azureml_api_key_env,omitempty" mapstructure:"azureml_api_key_env"`

	OpenAIBaseURL       string `yaml:"openai_base_url,omitempty" mapstructure:"openai_base_url"`
	OpenAISemanticModel string `yaml:"openai_semantic_model,omitempty" mapstructure:"openai_semantic_model"`
	OpenAICodeModel     string `yaml:"openai_code_model,omitempty" mapstructure:"openai_code_model"`
	OpenAIAPIKeyEnv     string `yaml:"openai_api_key_env,omitempty" mapstructure:"openai_api_key_env"`

	LocalSemanticModelPath string `yaml:"local_semantic_model_path,omitempty" mapstructure:"local_semantic_model_path"`
	LocalCodeModelPath     string `yaml:"local_code_model_path,omitempty" mapstructure:"local_code_model_path"`
	LocalUseGPU            bool   `yaml:"local_use_gpu,omitempty" mapstructure:"local_use_gpu"`
}

// IndexingConfig tunes the indexer pipeline's batch sizes.
type IndexingConfig struct {
	EmbeddingBatchSize int `yaml:"embedding_batch_size,omitempty" mapstructure:"embedding_batch_size"`
	UpsertBatchSize    int `yaml:"upsert_batch_size,omitempty" mapstructure:"upsert_batch_size"`
}

// SearchConfig tunes the hybrid searcher's default result limit.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit,omitempty" mapstructure:"default_limit"`
}

// Config is the fully resolved configuration consumed by the CLI and
// the core packages.
type Config struct {
	RepoID      string            `yaml:"repo_id" mapstructure:"repo_id"`
	Roots       RootsConfig       `yaml:"roots" mapstructure:"roots"`
	VectorStore VectorStoreConfig `yaml:"vector_store" mapstructure:"vector_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding" mapstructure:"embedding"`
	Indexing    IndexingConfig    `yaml:"indexing" mapstructure:"indexing"`
	Search      SearchConfig      `yaml:"search" mapstructure:"search"`
}

// Defaults returns a Config with every tunable at its spec default.
func Defaults() Config {
	return Config{
		VectorStore: VectorStoreConfig{Host: "localhost", Port: 6334},
		Embedding:   EmbeddingConfig{Provider: "local", RPS: 10, MaxRetries: 3},
		Indexing:    IndexingConfig{EmbeddingBatchSize: 200, UpsertBatchSize: 100},
		Search:      SearchConfig{DefaultLimit: 10},
	}
}

// Load resolves config for the workspace rooted at dir: it starts
// from Defaults, layers in .codeprysm/config.yaml discovered by
// walking up from dir, then applies CODEPRYSM_-prefixed environment
// overrides.
func Load(dir string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CODEPRYSM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	configDir, err := findConfigDir(dir)
	if err == nil {
		v.AddConfigPath(configDir)
		if readErr := v.ReadInConfig(); readErr != nil {
			if _, isNotFound := readErr.(viper.ConfigFileNotFoundError); !isNotFound {
				return Config{}, fmt.Errorf("config: read %s: %w", configDir, readErr)
			}
		}
	}

	if unmarshalErr := v.Unmarshal(&cfg); unmarshalErr != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", unmarshalErr)
	}
	return cfg, nil
}

// findConfigDir walks up from dir looking for an existing .codeprysm
// directory, the way FindConfigYAMLPath walked for .beads.
func findConfigDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for d := abs; d != filepath.Dir(d); d = filepath.Dir(d) {
		candidate := filepath.Join(d, ConfigDirName)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("config: no %s directory found above %s", ConfigDirName, dir)
}

// LoadDirect reads config.yaml straight off disk without viper,
// bypassing environment overrides. Useful for callers that need a
// config snapshot before the working directory or viper singleton is
// established.
func LoadDirect(configDir string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read config.yaml: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse config.yaml: %w", err)
	}
	return cfg, nil
}

// AllRoots returns the primary root followed by every additional root.
func (c Config) AllRoots() []string {
	if c.Roots.Primary == "" {
		return c.Roots.Additional
	}
	return append([]string{c.Roots.Primary}, c.Roots.Additional...)
}

// resolveAPIKey reads an API key from the named environment variable,
// the way the AzureML/OpenAI provider configs resolve credentials.
func resolveAPIKey(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// AzureMLAPIKey resolves the configured AzureML API key env var.
func (c Config) AzureMLAPIKey() string { return resolveAPIKey(c.Embedding.AzureMLAPIKeyEnv) }

// OpenAIAPIKey resolves the configured OpenAI-compatible API key env var.
func (c Config) OpenAIAPIKey() string { return resolveAPIKey(c.Embedding.OpenAIAPIKeyEnv) }
