package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"bulkimport/internal/descriptor"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides. The dot in a key becomes an
// underscore, so "storage.db.dsn" is BULKIMPORT_STORAGE_DB_DSN.
const EnvPrefix = "BULKIMPORT"

// Defaults applied before the file and the environment are read.
const (
	DefaultBatchSize     = 5000
	DefaultChannelBuffer = 2000
	DefaultLoaderWorkers = 1
)

// parserOptionKeys are bound individually because Options is a map and has
// no fields for bindEnvs to discover.
var parserOptionKeys = []string{
	OptDelimiter, OptHeaderRow, OptLazyQuotes, OptSkipBlankLines, OptMultilineRecords, OptMaxRecordLines,
}

// Default returns a Pipeline with the defaults Load starts from.
func Default() Pipeline {
	return Pipeline{
		Source:  Source{Kind: "file", File: SourceFile{Compression: "auto"}},
		Parser:  Parser{Kind: "delimited", Options: Options{}},
		Storage: Storage{Kind: "memory"},
		Runtime: RuntimeConfig{
			LoaderWorkers: DefaultLoaderWorkers,
			BatchSize:     DefaultBatchSize,
			ChannelBuffer: DefaultChannelBuffer,
		},
		Logging: Logging{Level: "info", Format: "text"},
		Metrics: Metrics{Backend: "none"},
	}
}

// Load reads a pipeline file (YAML, JSON or TOML by extension) and applies
// environment overrides. An empty path loads defaults plus environment only.
func Load(path string) (Pipeline, error) {
	p := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, p)
	for _, k := range parserOptionKeys {
		_ = v.BindEnv("parser.options." + k)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Pipeline{}, fmt.Errorf("read pipeline %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode pipeline %s: %w", path, err)
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if err := loadDescriptorFile(&p, path); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

// loadDescriptorFile fills p.Descriptor from p.DescriptorFile when it is set.
// Setting both the file and an inline descriptor is an error.
func loadDescriptorFile(p *Pipeline, pipelinePath string) error {
	if p.DescriptorFile == "" {
		return nil
	}
	d := p.Descriptor
	if d.Table != "" || d.EntityIDSource != "" || len(d.Families) > 0 {
		return fmt.Errorf("descriptor and descriptor_file are mutually exclusive")
	}
	file := p.DescriptorFile
	if !filepath.IsAbs(file) && pipelinePath != "" {
		file = filepath.Join(filepath.Dir(pipelinePath), file)
	}
	loaded, err := descriptor.Load(file)
	if err != nil {
		return fmt.Errorf("descriptor_file %s: %w", p.DescriptorFile, err)
	}
	p.Descriptor = loaded
	return nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string(nil), parts...), tag)
		switch f.Type.Kind() {
		case reflect.Struct:
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		case reflect.Map, reflect.Slice:
			// Maps and slices are bound per element elsewhere, or not at all.
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
