package ocr

import (
	"fmt"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"

	"poster-editor/src/pkg/config"
	"poster-editor/src/pkg/preprocess"
)

type Config struct {
	RemoteURL            string   `json:"remote_url,omitempty"`
	RemoteTimeoutSeconds int      `json:"remote_timeout_seconds,omitempty"`
	LanguageHints        []string `json:"language_hints,omitempty"`
	ContrastFactor       float64  `json:"contrast_factor,omitempty"`
	ROIXFrac             float64  `json:"roi_x_frac,omitempty"`
	ROIYFrac             float64  `json:"roi_y_frac,omitempty"`
	ROIWidthFrac         float64  `json:"roi_width_frac,omitempty"`
	ROIHeightFrac        float64  `json:"roi_height_frac,omitempty"`
}

func DefaultValueConfig() Config {
	roi := preprocess.DefaultROIPolicy()
	return Config{
		RemoteURL:            "",
		RemoteTimeoutSeconds: 15,
		LanguageHints:        []string{"chi_sim", "eng"},
		ContrastFactor:       1.2,
		ROIXFrac:             roi.XFrac,
		ROIYFrac:             roi.YFrac,
		ROIWidthFrac:         roi.WidthFrac,
		ROIHeightFrac:        roi.HeightFrac,
	}
}

// create config with default values before config gets initialized
var Cfg Config = DefaultValueConfig() // this one we use to access config values from anywhere

// ROIPolicy returns the crop policy described by this configuration.
func (c Config) ROIPolicy() preprocess.ROIPolicy {
	return preprocess.ROIPolicy{
		XFrac:      c.ROIXFrac,
		YFrac:      c.ROIYFrac,
		WidthFrac:  c.ROIWidthFrac,
		HeightFrac: c.ROIHeightFrac,
	}
}

/*
If local Config is provided - use it. Replace all missing values with default ones.

If not provided - just use defaultConfig.
*/
func InitializeConfig(localConfig *Config) {
	// If not provided - just use defaultConfig
	if localConfig == nil {
		tl.Log(tl.Info, palette.Purple, "%s config is %s, keeping %s", "ocr", "not provided", "default ocr config")
		return
	}

	defaultConfig := DefaultValueConfig() // Default values to replace some values with during config initialization

	// If local Config is provided - use it
	Cfg = *localConfig

	tl.ApplyDefaults(&Cfg, defaultConfig, func(field string, defVal any) {
		tl.Log(
			tl.Info, palette.Purple,
			"%s field is %s in %s configuration. Using default value: %v",
			field, "missing", config.GetPackageName(), tl.PrettyForStderr(defVal),
		)
	})

	tl.Log(tl.Info, palette.Green, "%s config was %s, using %s", "ocr", "provided", "local ocr config")
	tl.LogJSON(tl.Verbose, palette.CyanDim, fmt.Sprintf("%s configuration", config.GetPackageName()), Cfg)
}
