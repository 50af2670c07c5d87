// Package config loads typstflow.yml: engine settings, database and cache
// connections, the HTTP server, and the declarative template and render
// specs resolved into pipelines at startup.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/frankdugan3/typstflow/pkg/engine"
	"github.com/frankdugan3/typstflow/pkg/pipeline"
	"github.com/frankdugan3/typstflow/pkg/typst"
)

// Config represents the typstflow configuration
type Config struct {
	Engine    EngineConfig     `mapstructure:"engine"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Server    ServerConfig     `mapstructure:"server"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Templates []TemplateConfig `mapstructure:"templates"`
	Renders   []RenderConfig   `mapstructure:"renders"`
}

// EngineConfig configures the Typst engine backend
type EngineConfig struct {
	Root              string   `mapstructure:"root"`
	FontPaths         []string `mapstructure:"font_paths"`
	IgnoreSystemFonts bool     `mapstructure:"ignore_system_fonts"`
	TypstBin          string   `mapstructure:"typst_bin"`
}

// DatabaseConfig configures the fetch data source
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
	Kind   string `mapstructure:"kind"`
}

// ServerConfig configures the HTTP frontend
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CacheConfig configures the rendered-document cache
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// TemplateConfig declares one template
type TemplateConfig struct {
	Name   string            `mapstructure:"name"`
	Source string            `mapstructure:"source"`
	Path   string            `mapstructure:"path"`
	Root   string            `mapstructure:"root"`
	Inputs map[string]string `mapstructure:"inputs"`
}

// FetchConfig declares a render's data fetch
type FetchConfig struct {
	Kind         string `mapstructure:"kind"`
	Statement    string `mapstructure:"statement"`
	AllowMissing bool   `mapstructure:"allow_missing"`
	Limit        int    `mapstructure:"limit"`
	BatchSize    int    `mapstructure:"batch_size"`
}

// ArgConfig declares one render argument
type ArgConfig struct {
	Name     string `mapstructure:"name"`
	Required bool   `mapstructure:"required"`
}

// RenderConfig declares one render spec
type RenderConfig struct {
	Name         string       `mapstructure:"name"`
	Template     string       `mapstructure:"template"`
	Format       string       `mapstructure:"format"`
	Page         *int         `mapstructure:"page"`
	Pages        string       `mapstructure:"pages"`
	PDFStandards []string     `mapstructure:"pdf_standards"`
	DocumentID   string       `mapstructure:"document_id"`
	Fetch        *FetchConfig `mapstructure:"fetch"`
	Args         []ArgConfig  `mapstructure:"args"`
	DataPath     string       `mapstructure:"data_path"`
	Timezone     string       `mapstructure:"timezone"`
}

// Load reads typstflow.yml from the current directory, or the explicit
// file when path is non-empty. A missing file yields defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("engine.typst_bin", "typst")
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("database.kind", "record")

	v.SetConfigName("typstflow")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if path != "" {
		v.SetConfigFile(path)
	}

	// Enable environment variable support
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Specs resolves the declared renders into pipeline.RenderSpec values,
// resolving template references and pdf options. Spec coherence itself is
// checked later by pipeline.Compile.
func (c *Config) Specs() ([]pipeline.RenderSpec, error) {
	templates := make(map[string]TemplateConfig, len(c.Templates))
	for _, t := range c.Templates {
		if _, dup := templates[t.Name]; dup {
			return nil, fmt.Errorf("duplicate template %q", t.Name)
		}
		templates[t.Name] = t
	}

	specs := make([]pipeline.RenderSpec, 0, len(c.Renders))
	for _, r := range c.Renders {
		t, ok := templates[r.Template]
		if !ok {
			return nil, fmt.Errorf("render %q references unknown template %q", r.Name, r.Template)
		}

		root := t.Root
		if root == "" {
			root = c.Engine.Root
		}

		spec := pipeline.RenderSpec{
			Name: r.Name,
			Template: pipeline.TemplateSpec{
				Name:   t.Name,
				Source: t.Source,
				Path:   t.Path,
				Root:   root,
				Inputs: t.Inputs,
			},
			Format:   pipeline.Format(r.Format),
			Page:     r.Page,
			DataPath: r.DataPath,
		}

		if r.Timezone != "" {
			spec.Encoding = &typst.Context{Timezone: r.Timezone}
		}

		if r.Pages != "" || len(r.PDFStandards) > 0 || r.DocumentID != "" {
			opts := &engine.PDFOptions{Pages: r.Pages, DocumentID: r.DocumentID}
			for _, s := range r.PDFStandards {
				std, err := engine.ParsePDFStandard(s)
				if err != nil {
					return nil, fmt.Errorf("render %q: %w", r.Name, err)
				}
				opts.Standards = append(opts.Standards, std)
			}
			spec.PDF = opts
		}

		if r.Fetch != nil {
			spec.Fetch = &pipeline.FetchSpec{
				Kind:         pipeline.FetchKind(r.Fetch.Kind),
				Statement:    r.Fetch.Statement,
				AllowMissing: r.Fetch.AllowMissing,
				Limit:        r.Fetch.Limit,
				BatchSize:    r.Fetch.BatchSize,
			}
		}

		for _, a := range r.Args {
			spec.Args = append(spec.Args, pipeline.ArgSpec{Name: a.Name, Required: a.Required})
		}

		specs = append(specs, spec)
	}
	return specs, nil
}
