package config

// Default configuration values.
const (
	DefaultModelsDir = "models"
	DefaultDialect   = "ansi"
)

// ApplyDefaults fills unset fields of a ProjectConfig.
func (c *ProjectConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.Dialect == "" {
		c.Dialect = DefaultDialect
	}
}
