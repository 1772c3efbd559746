package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/strata/pkg/semantic"
)

// ConfigFileName is the name of the project file.
const ConfigFileName = "strata.yaml"

// ConfigFileNameAlt is the alternate name of the project file.
const ConfigFileNameAlt = "strata.yml"

// envPrefix namespaces the environment overrides: STRATA_MODELS_DIR
// overrides models_dir.
const envPrefix = "STRATA_"

// Project is a loaded strata project.
type Project struct {
	Config ProjectConfig
	Graph  *semantic.Graph
}

// Load loads the project in dir: strata.yaml (with environment overrides),
// then every model file under the models directory. A nil logger discards.
func Load(dir string, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	configPath := findConfigFile(dir)
	if configPath == "" {
		return nil, fmt.Errorf("no %s found in %s", ConfigFileName, dir)
	}
	logger.Debug("loading project file", "path", configPath)

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"models_dir": DefaultModelsDir,
		"dialect":    DefaultDialect,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", configPath, err)
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg ProjectConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", configPath, err)
	}
	cfg.ApplyDefaults()
	cfg.ProjectRoot = dir

	modelsDir := cfg.ModelsDir
	if !filepath.IsAbs(modelsDir) {
		modelsDir = filepath.Join(dir, modelsDir)
	}
	graph, err := LoadGraph(modelsDir, logger)
	if err != nil {
		return nil, err
	}
	return &Project{Config: cfg, Graph: graph}, nil
}

// findConfigFile finds the project file in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// modelFile is the schema of one definition file under models_dir.
type modelFile struct {
	Models []*semantic.Model `koanf:"models"`

	// Metrics are graph-level metrics, addressable without a model
	// qualifier.
	Metrics []*semantic.Metric `koanf:"metrics"`
}

// LoadGraph parses every *.yaml/*.yml under dir in parallel and merges the
// results into a validated graph. Merge order is sorted by file name so the
// graph never depends on parse timing.
func LoadGraph(dir string, logger *slog.Logger) (*semantic.Graph, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading models directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	parsed := make([]modelFile, len(files))
	var g errgroup.Group
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			mf, err := parseModelFile(path)
			if err != nil {
				return err
			}
			parsed[i] = mf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	graph := semantic.NewGraph()
	modelCount, metricCount := 0, 0
	for i, mf := range parsed {
		for _, m := range mf.Models {
			if err := graph.AddModel(m); err != nil {
				return nil, fmt.Errorf("%s: %w", files[i], err)
			}
			modelCount++
		}
		for _, m := range mf.Metrics {
			if err := graph.AddMetric(m); err != nil {
				return nil, fmt.Errorf("%s: %w", files[i], err)
			}
			metricCount++
		}
	}
	if err := graph.RebuildAdjacency(); err != nil {
		return nil, err
	}

	logger.Info("loaded semantic graph",
		"files", len(files), "models", modelCount, "graph_metrics", metricCount)
	return graph, nil
}

// parseModelFile parses one definition file. Unknown keys are errors so
// typos in model files surface at load time instead of compiling wrong.
func parseModelFile(path string) (modelFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return modelFile{}, fmt.Errorf("%s: %w", path, err)
	}

	var mf modelFile
	err := k.UnmarshalWithConf("", &mf, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			Result:           &mf,
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		},
	})
	if err != nil {
		return modelFile{}, fmt.Errorf("%s: %w", path, err)
	}
	return mf, nil
}
