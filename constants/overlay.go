package constants

const (
	ADB = "adb"
	IOS = "ios"
)

const (
	TapPath  = "/server/remote/tapCoordinates"
	DumpPath = "/server/remote/dumpUI"

	// DefaultTapEndpoint is resolved with fasttemplate.
	DefaultTapEndpoint = "{{server}}" + TapPath

	DefaultServerURL = "http://127.0.0.1:5109"
	DefaultAddr      = ":5109"

	CoordinateTemplate = "({{x}}, {{y}})"
)
