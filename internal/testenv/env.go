package testenv

import "path/filepath"

// Dirs contains isolated directories for aikeys config in tests.
type Dirs struct {
	Base   string
	Config string
}

// AikeysDirs returns conventional test directories rooted at base.
func AikeysDirs(base string) Dirs {
	return Dirs{
		Base:   base,
		Config: filepath.Join(base, "config"),
	}
}

// ApplyAikeys points AIKEYS_CONFIG_DIR at an isolated directory and clears
// env overrides that would leak in from the developer's shell.
func ApplyAikeys(setenv func(string, string), base string) Dirs {
	dirs := AikeysDirs(base)
	setenv("AIKEYS_CONFIG_DIR", dirs.Config)
	for _, name := range []string{"AIKEYS_API_URL", "AIKEYS_ROLE", "AIKEYS_TIMEOUT", "AIKEYS_NO_COLOR", "NO_COLOR"} {
		setenv(name, "")
	}
	return dirs
}
