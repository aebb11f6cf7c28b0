package buildinfo

import "runtime/debug"

// Overridden at link time with -ldflags "-X ...".
var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    commit := Commit
    if commit == "" {
        if bi, ok := debug.ReadBuildInfo(); ok {
            for _, s := range bi.Settings {
                if s.Key == "vcs.revision" { commit = s.Value; break }
            }
        }
    }
    return map[string]string{
        "version": Version,
        "commit":  commit,
        "builtAt": BuiltAt,
    }
}

