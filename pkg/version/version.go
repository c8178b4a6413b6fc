// Package version reports the build identity shared by the server and CLI.
package version

import (
	"runtime/debug"
	"strings"
)

// version is overridden with -ldflags "-X .../pkg/version.version=v1.2.3".
var version = "dev"

// Info describes the running binary.
type Info struct {
	Version  string `json:"version"`
	Revision string `json:"revision,omitempty"`
	Modified bool   `json:"modified,omitempty"`
}

// Version returns the module version when built from a tagged module,
// the ldflags value otherwise.
func Version() string {
	return Read().Version
}

// Read collects Info from the embedded build settings.
func Read() Info {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{Version: version}
	}
	return fromBuild(info)
}

func fromBuild(info *debug.BuildInfo) Info {
	out := Info{Version: version}
	if info.Main.Sum != "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		out.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Revision = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}
	return out
}

// String renders "v1.2.3 (abc1234, modified)".
func (i Info) String() string {
	var extra []string
	if i.Revision != "" {
		extra = append(extra, i.Revision[:min(7, len(i.Revision))])
	}
	if i.Modified {
		extra = append(extra, "modified")
	}
	if len(extra) == 0 {
		return i.Version
	}
	return i.Version + " (" + strings.Join(extra, ", ") + ")"
}
