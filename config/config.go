// Package config provides a go-simpler.org/env configuration table for
// applications built on this module, read from the environment or from a
// ".env" file located via github.com/adrg/xdg.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go-simpler.org/env"

	"nostrkit.dev/internal/chk"
	"nostrkit.dev/internal/log"
	"nostrkit.dev/utils/apputil"
)

// C is the configuration for a nostrkit client process: pool defaults,
// cache location, and logging.
type C struct {
	AppName  string `env:"NOSTRKIT_APP_NAME" default:"nostrkit"`
	Config   string `env:"NOSTRKIT_CONFIG_DIR" usage:"location of the .env override file"`
	CacheDir string `env:"NOSTRKIT_CACHE_DIR" usage:"storage location for the filestore/badger cache"`
	LogLevel string `env:"NOSTRKIT_LOG_LEVEL" default:"info" usage:"trace debug info warn error fatal"`

	Relays []string `env:"NOSTRKIT_RELAYS" usage:"comma-separated seed relay URLs"`

	BackoffBase   time.Duration `env:"NOSTRKIT_BACKOFF_BASE" default:"1s" usage:"initial reconnect backoff delay"`
	BackoffFactor float64       `env:"NOSTRKIT_BACKOFF_FACTOR" default:"2" usage:"backoff multiplier per attempt"`
	BackoffCap    time.Duration `env:"NOSTRKIT_BACKOFF_CAP" default:"300s" usage:"maximum reconnect backoff delay"`

	SampleRateHealthy time.Duration `env:"NOSTRKIT_SAMPLE_HEALTHY" default:"0s" usage:"unused placeholder, kept for future adaptive tuning"`
}

// New loads a config.C from the environment, falling back to defaults and
// then to a persisted .env file if present.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, &env.Options{SliceSep: ","}); chk.E(err) {
		return
	}
	if cfg.Config == "" {
		cfg.Config = filepath.Join(xdg.ConfigHome, cfg.AppName)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(xdg.DataHome, cfg.AppName)
	}
	envPath := filepath.Join(cfg.Config, ".env")
	if apputil.FileExists(envPath) {
		var kv KVSlice
		if kv, err = readEnvFile(envPath); chk.E(err) {
			return
		}
		if err = env.Load(cfg, &env.Options{SliceSep: ",", Source: kvSource(kv)}); chk.E(err) {
			return
		}
		log.SetLevel(cfg.LogLevel)
		log.I.F("loaded configuration from %s", envPath)
	}
	return
}

// kvSource adapts a KVSlice to go-simpler.org/env's env.Source interface.
type kvSource KVSlice

func (s kvSource) LookupEnv(key string) (string, bool) {
	for _, p := range s {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

func readEnvFile(path string) (kv KVSlice, err error) {
	var b []byte
	if b, err = os.ReadFile(path); chk.E(err) {
		return
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		kv = append(kv, KV{Key: line[:idx], Value: line[idx+1:]})
	}
	return
}

// HelpRequested returns true if the first CLI argument requests help.
func HelpRequested() (help bool) {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "help", "-h", "--h", "-help", "--help", "?":
			help = true
		}
	}
	return
}

// GetEnv reports whether the first CLI argument asks to print configuration
// as KEY=value lines.
func GetEnv() (requested bool) {
	if len(os.Args) > 1 && strings.ToLower(os.Args[1]) == "env" {
		requested = true
	}
	return
}

// KV is a key/value pair.
type KV struct{ Key, Value string }

// KVSlice is a sortable collection of key/value pairs.
type KVSlice []KV

func (kv KVSlice) Len() int           { return len(kv) }
func (kv KVSlice) Less(i, j int) bool { return kv[i].Key < kv[j].Key }
func (kv KVSlice) Swap(i, j int)      { kv[i], kv[j] = kv[j], kv[i] }

// EnvKV turns a struct with `env` tags into a list of KEY=value pairs.
func EnvKV(cfg any) (m KVSlice) {
	t := reflect.TypeOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		k := t.Field(i).Tag.Get("env")
		if k == "" {
			continue
		}
		v := reflect.ValueOf(cfg).Field(i).Interface()
		var val string
		switch x := v.(type) {
		case string:
			val = x
		case int, bool, time.Duration, float64:
			val = fmt.Sprint(x)
		case []string:
			if len(x) > 0 {
				val = strings.Join(x, ",")
			}
		}
		m = append(m, KV{k, val})
	}
	return
}

// PrintEnv renders cfg's key/values to w, sorted by key.
func PrintEnv(cfg *C, w io.Writer) {
	kvs := EnvKV(*cfg)
	sort.Sort(kvs)
	for _, v := range kvs {
		_, _ = fmt.Fprintf(w, "%s=%s\n", v.Key, v.Value)
	}
}

// PrintHelp writes a usage summary plus the effective configuration to w.
func PrintHelp(cfg *C, w io.Writer) {
	_, _ = fmt.Fprintf(w, "%s\n\n", cfg.AppName)
	_, _ = fmt.Fprintf(w, "Environment variables that configure %s:\n\n", cfg.AppName)
	env.Usage(cfg, w, &env.Options{SliceSep: ","})
	_, _ = fmt.Fprintf(
		w,
		"\nCLI parameter 'help' also prints this information\n"+
			"\na .env file at %s/.env is loaded automatically if present.\n"+
			"use the 'env' parameter to print the current configuration\n\n",
		cfg.Config,
	)
	_, _ = fmt.Fprintf(w, "\ncurrent configuration:\n\n")
	PrintEnv(cfg, w)
	_, _ = fmt.Fprintln(w)
}
