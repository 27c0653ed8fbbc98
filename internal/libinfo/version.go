/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"debug/buildinfo"
	"runtime/debug"
	"strings"
	"sync"
)

const LibName = "go-refauth"

const libPath = "github.com/acronis/" + LibName

const unknownLibVersion = "v0.0.0"

var (
	libVersion     string
	libVersionOnce sync.Once
)

// GetLibVersion returns the version of the library as it is recorded in the build info of the main module.
func GetLibVersion() string {
	libVersionOnce.Do(func() {
		if bi, ok := debug.ReadBuildInfo(); ok {
			libVersion = extractLibVersion(bi, libPath)
		}
		if libVersion == "" {
			libVersion = unknownLibVersion
		}
	})
	return libVersion
}

// UserAgent returns the value of the "User-Agent" header for requests to the authorization server.
func UserAgent() string {
	return nameWithVersion()
}

// LogPrefix returns the prefix for all log messages of the library.
func LogPrefix() string {
	return "[" + nameWithVersion() + "] "
}

func nameWithVersion() string {
	return LibName + "/" + GetLibVersion()
}

// extractLibVersion looks for the module (including its major version suffixes) in the dependencies.
func extractLibVersion(bi *buildinfo.BuildInfo, modulePath string) string {
	if bi == nil {
		return ""
	}
	for _, dep := range bi.Deps {
		if dep.Path == modulePath || strings.HasPrefix(dep.Path, modulePath+"/v") {
			return dep.Version
		}
	}
	return ""
}
