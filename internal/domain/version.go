package domain

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// EngineVersionTag identifies which engine client protocol the active adapter targets.
// It is resolved once at startup and never changes for the process lifetime.
type EngineVersionTag struct {
	// Raw is the version as configured, e.g. "8.18.1".
	Raw string
	// Major is the major release, used to select the adapter.
	Major int
}

// ParseEngineVersion parses a semantic version such as "8.18.1", "v7.17" or "8".
func ParseEngineVersion(raw string) (EngineVersionTag, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return EngineVersionTag{}, Errorf(KindInvalidArgument, "engine version is empty")
	}
	canonical := trimmed
	if !strings.HasPrefix(canonical, "v") {
		canonical = "v" + canonical
	}
	if !semver.IsValid(canonical) {
		return EngineVersionTag{}, Errorf(KindInvalidArgument, "engine version %q is not a semantic version", raw)
	}
	major, err := strconv.Atoi(strings.TrimPrefix(semver.Major(canonical), "v"))
	if err != nil {
		return EngineVersionTag{}, Errorf(KindInvalidArgument, "engine version %q has no numeric major", raw)
	}
	return EngineVersionTag{Raw: strings.TrimPrefix(trimmed, "v"), Major: major}, nil
}

func (v EngineVersionTag) String() string {
	if v.Raw == "" {
		return fmt.Sprintf("%d", v.Major)
	}
	return v.Raw
}

// EngineInfo is what the startup ping learns about the engine it connected to.
type EngineInfo struct {
	ClusterName   string `json:"cluster_name"`
	ClusterUUID   string `json:"cluster_uuid,omitempty"`
	VersionNumber string `json:"version_number"`
	Distribution  string `json:"distribution,omitempty"`
}

// Major returns the major of the reported engine version, or -1 when unparsable.
func (i EngineInfo) Major() int {
	tag, err := ParseEngineVersion(i.VersionNumber)
	if err != nil {
		return -1
	}
	return tag.Major
}
