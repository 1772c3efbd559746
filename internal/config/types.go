// Package config loads a strata project: the strata.yaml project file plus
// the model definition files under its models directory, producing a
// validated semantic graph ready for compilation.
package config

// ProjectConfig is the strata.yaml contents after defaults and environment
// overrides.
type ProjectConfig struct {
	// ModelsDir holds the model definition files, relative to the project
	// root unless absolute.
	ModelsDir string `koanf:"models_dir"`

	// Dialect names the default compilation dialect.
	Dialect string `koanf:"dialect"`

	// PreAggSchema is the schema rollup tables are read from. Empty reads
	// them unqualified.
	PreAggSchema string `koanf:"pre_agg_schema"`

	// ProjectRoot is the directory strata.yaml was found in. Set by the
	// loader, not by the file.
	ProjectRoot string `koanf:"-"`
}
