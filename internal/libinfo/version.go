/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo exposes the version of the module as it was resolved at build time.
package libinfo

import (
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const moduleName = "github.com/windowlimit/go-windowlimit"

const develVersion = "v0.0.0"

// PrometheusLibVersionLabel is the name of the label that is added to all metrics of the module.
const PrometheusLibVersionLabel = "go_windowlimit_version"

// AddPrometheusLibVersionLabel returns a copy of labels extended with the module version label.
func AddPrometheusLibVersionLabel(labels prometheus.Labels) prometheus.Labels {
	labelsCopy := make(prometheus.Labels, len(labels)+1)
	for k, v := range labels {
		labelsCopy[k] = v
	}
	labelsCopy[PrometheusLibVersionLabel] = GetLibVersion()
	return labelsCopy
}

var (
	libVersion     string
	libVersionOnce sync.Once
)

// GetLibVersion returns the module version, "v0.0.0" if it cannot be determined.
func GetLibVersion() string {
	libVersionOnce.Do(func() {
		buildInfo, _ := debug.ReadBuildInfo()
		libVersion = extractLibVersion(buildInfo, moduleName)
		if libVersion == "" {
			libVersion = develVersion
		}
	})
	return libVersion
}

// extractLibVersion looks for the module either as the main module of the binary or as a dependency.
// The module path may carry a major version suffix ("/vN").
func extractLibVersion(buildInfo *debug.BuildInfo, modName string) string {
	if buildInfo == nil {
		return ""
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(modName) + `(/v[0-9]+)?$`)
	if re.MatchString(buildInfo.Main.Path) && buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}
	for _, dep := range buildInfo.Deps {
		if re.MatchString(dep.Path) {
			return dep.Version
		}
	}
	return ""
}
