package util

import (
	"os"
	"strings"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

var requiredFlags = map[*string]string{}

// RequiredFlag marks a string flag as mandatory for this entrypoint. The
// name may be given as "image", "-image" or "--image".
func RequiredFlag(flagPointer *string, cliName string) {
	requiredFlags[flagPointer] = normalizeFlagName(cliName)
}

func normalizeFlagName(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "--") {
		return s
	}
	if strings.HasPrefix(s, "-") {
		return "-" + s
	}
	return "--" + s
}

// EnsureFlags logs every missing required flag and exits(1) if any were
// missing. Call it right after flag.Parse.
func EnsureFlags() {
	missing := false
	for flagPointer, cliName := range requiredFlags {
		if flagPointer == nil || strings.TrimSpace(*flagPointer) == "" {
			tl.Log(tl.Warning, palette.YellowBold, "%s parameter is %s", cliName, "required")
			missing = true
		}
	}
	if missing {
		os.Exit(1)
	}
}
