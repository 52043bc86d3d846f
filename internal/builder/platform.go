package builder

import "path/filepath"

// Platform describes where the build tool places its artifact for a host OS.
type Platform struct {
	Target string
	Folder string
	Suffix string
}

var platforms = map[string]Platform{
	"windows": {Target: "Win64", Folder: "Windows", Suffix: ".exe"},
	"linux":   {Target: "Linux64", Folder: "Linux", Suffix: ""},
	"darwin":  {Target: "OSXUniversal", Folder: "Mac", Suffix: ".app"},
}

// PlatformFor returns the platform for goos. Unknown systems fall back to
// the windows layout.
func PlatformFor(goos string) Platform {
	if p, ok := platforms[goos]; ok {
		return p
	}
	return platforms["windows"]
}

// BuildTarget returns the value passed to -buildTarget on goos.
func BuildTarget(goos string) string {
	return PlatformFor(goos).Target
}

// ArtifactPath returns where a successful build leaves its product.
func ArtifactPath(workspace, goos, product string) string {
	p := PlatformFor(goos)
	return filepath.Join(workspace, "Build", p.Folder, product+p.Suffix)
}
