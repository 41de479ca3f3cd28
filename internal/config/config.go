package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models registry.yml.
type Config struct {
	Registry struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"registry"`
	Documents struct {
		UploadsDir   string                `yaml:"uploads_dir"`
		Requirements []DocumentRequirement `yaml:"requirements"`
	} `yaml:"documents"`
	Chat struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"max_tokens"`
	} `yaml:"chat"`
}

// DocumentRequirement describes one entry of the compliance catalog. An
// initiative at or past Stage must carry a document in Category when
// Mandatory is set.
type DocumentRequirement struct {
	Name      string `yaml:"name"`
	Category  string `yaml:"category"`
	Stage     string `yaml:"stage"`
	Mandatory bool   `yaml:"mandatory"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run apr init to create it", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default("registry"), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Registry.ID == "" {
		return fmt.Errorf("config.registry.id is required")
	}
	if c.Documents.UploadsDir == "" {
		return fmt.Errorf("config.documents.uploads_dir is required")
	}
	stages := map[string]bool{"idea": true, "proposal": true, "pilot": true, "production": true, "retired": true}
	seen := map[string]bool{}
	for i, req := range c.Documents.Requirements {
		if req.Name == "" {
			return fmt.Errorf("documents.requirements[%d] has empty name", i)
		}
		if req.Category == "" {
			return fmt.Errorf("requirement %s has empty category", req.Name)
		}
		if !stages[req.Stage] {
			return fmt.Errorf("requirement %s has unknown stage %s", req.Name, req.Stage)
		}
		if seen[req.Name] {
			return fmt.Errorf("duplicate requirement name %s", req.Name)
		}
		seen[req.Name] = true
	}
	if c.Chat.Model == "" {
		return fmt.Errorf("config.chat.model is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "registry.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(registryID string) string {
	return fmt.Sprintf(defaultTemplate, registryID)
}

// Default returns the default Config struct for a registry.
func Default(registryID string) *Config {
	var cfg Config
	cfg.Registry.ID = registryID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, registryID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `registry:
  id: %s
  name: AI Programs Registry

documents:
  uploads_dir: uploads

  requirements:
    - name: Project Charter
      category: governance
      stage: proposal
      mandatory: true
    - name: Risk Assessment
      category: risk
      stage: proposal
      mandatory: true
    - name: Vendor Evaluation
      category: procurement
      stage: proposal
      mandatory: false
    - name: Pilot Protocol
      category: clinical
      stage: pilot
      mandatory: true
    - name: Equity Impact Review
      category: equity
      stage: pilot
      mandatory: true
    - name: Monitoring Plan
      category: operations
      stage: production
      mandatory: true
    - name: Go-Live Approval
      category: governance
      stage: production
      mandatory: true
    - name: Decommission Report
      category: governance
      stage: retired
      mandatory: false

chat:
  base_url: https://api.openai.com/v1
  model: gpt-4o-mini
  max_tokens: 1024
`
