package capture

import (
	"runtime"
	"strings"
)

// Container media types a finalized recording can be tagged with.
const (
	ContainerWebM = "audio/webm"
	ContainerMP4  = "audio/mp4"
)

// ContainerForPlatform picks the recording container for a platform
// family. The Apple family rejects webm recordings and is special-cased
// to mp4; everything else records webm.
func ContainerForPlatform(family string) string {
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "ios", "iphone", "ipad", "ipod", "darwin", "apple":
		return ContainerMP4
	default:
		return ContainerWebM
	}
}

// DetectPlatformFamily reports the running platform family for container
// selection. Config may override it.
func DetectPlatformFamily() string {
	switch runtime.GOOS {
	case "darwin", "ios":
		return "apple"
	default:
		return runtime.GOOS
	}
}
