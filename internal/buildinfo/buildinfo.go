// Package buildinfo carries version data stamped at link time, e.g.
//
//	go build -ldflags "-X nearp/internal/buildinfo.Version=v1.2.0"
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the stamped values. Commit falls back to the VCS revision the
// Go toolchain embeds when it was not set explicitly.
func Info() map[string]string {
	commit := Commit
	if commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
				}
			}
		}
	}
	return map[string]string{
		"version": Version,
		"commit":  commit,
		"builtAt": BuiltAt,
	}
}

// String is the one-line form printed by -version flags.
func String() string {
	i := Info()
	s := i["version"]
	if i["commit"] != "" {
		s += " (" + i["commit"] + ")"
	}
	if i["builtAt"] != "" {
		s += " built " + i["builtAt"]
	}
	return s
}
