// Package config holds the fixed orderings and names the build works from.
//
// The defaults reproduce the layout of the macro library repository: the lua
// fragment folder, the three web service targets with their shared fragment
// lists, and the folder order of the combined artifact. A macrobuild.yml file
// in the project root (or any file passed explicitly) overrides individual
// keys; lists are replaced as a whole.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bsthun/gut"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the project root.
const FileName = "macrobuild.yml"

// Config is the build configuration, read from macrobuild.yml over Default.
type Config struct {
	CacheDir string       `yaml:"cache_dir" validate:"required"`
	MacroExt string       `yaml:"macro_ext" validate:"required,startswith=."`
	Lua      LuaConfig    `yaml:"lua"`
	Webout   WeboutConfig `yaml:"webout"`
	Bundle   BundleConfig `yaml:"bundle"`
}

// LuaConfig locates the lua fragments and names their wrapper macros.
type LuaConfig struct {
	Dir    string `yaml:"dir" validate:"required"`
	Ext    string `yaml:"ext" validate:"required,startswith=."`
	Prefix string `yaml:"prefix" validate:"required"`
	// Lrecl is the smallest line-length option value a wrapper sets while
	// including its fragment.
	Lrecl int `yaml:"lrecl" validate:"gte=1"`
}

// WeboutConfig describes the web service templates and their markers.
type WeboutConfig struct {
	// Strict turns malformed marker pairs into errors. Defaults to true.
	Strict  *bool    `yaml:"strict"`
	Begin   string   `yaml:"begin" validate:"required"`
	End     string   `yaml:"end" validate:"required,nefield=Begin"`
	DocEnd  string   `yaml:"doc_end" validate:"required"`
	Targets []Target `yaml:"targets" validate:"dive"`
}

// Target is one file with a generated region and the ordered shared
// fragments spliced into it.
type Target struct {
	Path      string   `yaml:"path" validate:"required"`
	Fragments []string `yaml:"fragments" validate:"required,min=1,dive,required"`
}

// BundleConfig lists the bundled folders and the output names.
type BundleConfig struct {
	Folders []string `yaml:"folders" validate:"required,min=1,unique,dive,required"`
	Prefix  string   `yaml:"prefix" validate:"required"`
	Output  string   `yaml:"output" validate:"required"`
	// Banner replaces the default comment block at the top of the combined
	// artifact when set.
	Banner string `yaml:"banner"`
}

// IsStrict reports whether malformed marker pairs are fatal.
func (r WeboutConfig) IsStrict() bool {
	return r.Strict == nil || *r.Strict
}

// Default returns the built-in configuration.
func Default() *Config {
	shared := []string{"base/mp_jsonout.sas", "base/mf_getuser.sas"}
	with := func(extra ...string) []string {
		return append(append([]string{}, shared...), extra...)
	}

	return &Config{
		CacheDir: ".macrobuild",
		MacroExt: ".sas",
		Lua: LuaConfig{
			Dir:    "lua",
			Ext:    ".lua",
			Prefix: "ml_",
			Lrecl:  1024,
		},
		Webout: WeboutConfig{
			Strict: gut.Ptr(true),
			Begin:  "/* WEBOUT BEGIN */",
			End:    "/* WEBOUT END */",
			DocEnd: "**/",
			Targets: []Target{
				{Path: "viya/mv_createwebservice.sas", Fragments: with("viya/mv_webout.sas")},
				{Path: "meta/mm_createwebservice.sas", Fragments: with("meta/mm_webout.sas")},
				{Path: "server/ms_createwebservice.sas", Fragments: with("server/ms_webout.sas", "server/mfs_httpheader.sas")},
			},
		},
		Bundle: BundleConfig{
			Folders: []string{"base", "ddl", "meta", "metax", "server", "viya", "lua", "fcmp", "xplatform"},
			Prefix:  "mc_",
			Output:  "all.sas",
		},
	}
}

// Load returns the defaults overlaid with the configuration file. An empty
// path means root/macrobuild.yml, which may be absent; an explicit path must
// exist.
func Load(root, path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}

	// * read config file
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("unable to read configuration file: %w", err)
	}

	// * parse config over defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration file %s: %w", path, err)
	}

	// * validate merged config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the struct constraints.
func (r *Config) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
