// Package config loads the shared JSON configuration file and hands each
// package its own section. Packages keep their own Config struct and
// defaults; this package only owns the file.
package config

import (
	"encoding/json"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
)

// Raw config sections, keyed by top-level JSON field name.
var sections = map[string]json.RawMessage{}

/*
InitializeConfig reads the JSON configuration file at configPath and keeps
its top-level sections for later Section calls.

A missing file is not fatal: every package falls back to its defaults, the
same way it does when its section is absent. A file that exists but cannot
be parsed is fatal, since running with half a config is worse than not
running at all.
*/
func InitializeConfig(configPath string) {
	fileBytes, readErr := os.ReadFile(configPath)
	if readErr != nil {
		tl.Log(
			tl.Warning, palette.YellowBold, "Config file '%s' is %s, using %s",
			configPath, "not readable", "default values everywhere",
		)
		return
	}

	parseErr := json.Unmarshal(fileBytes, &sections)
	xerr.QuitIfError(parseErr, "parse config file "+configPath)

	tl.Log(
		tl.Info, palette.Green, "Loaded config file '%s' with '%s' sections",
		configPath, strconv.Itoa(len(sections)),
	)
}

/*
Section decodes the named top-level section of the config file into out.

It returns false when the section is missing or the config file was never
loaded, so the caller can pass nil to its package's InitializeConfig and
keep defaults.
*/
func Section(name string, out any) bool {
	raw, ok := sections[name]
	if !ok {
		return false
	}

	decodeErr := json.Unmarshal(raw, out)
	xerr.QuitIfError(decodeErr, "decode config section "+name)

	return true
}

/*
CheckIfEnvVarsPresent loads .env (if present) and warns about every missing
environment variable from the given list. Missing variables are not fatal
here; the feature that needs them fails closed on its own.
*/
func CheckIfEnvVarsPresent(names ...string) {
	_ = godotenv.Load()

	for _, name := range names {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			tl.Log(
				tl.Warning, palette.YellowBold, "Environment variable '%s' is %s",
				name, "not set",
			)
		}
	}
}

// GetPackageName returns the package name of the caller, for log lines that
// name the package whose configuration is being initialized.
func GetPackageName() string {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return "unknown"
	}

	fullName := runtime.FuncForPC(pc).Name() // e.g. poster-editor/src/pkg/ocr.InitializeConfig
	lastSlash := strings.LastIndex(fullName, "/")
	trimmed := fullName[lastSlash+1:]
	if dot := strings.Index(trimmed, "."); dot >= 0 {
		trimmed = trimmed[:dot]
	}
	return trimmed
}
