package version

// Version is the release tag injected at build time with
// -ldflags "-X github.com/telltales/telltales-cli/version.Version=..."
var Version = "dev"

// UserAgent is sent on every request to Telldus Live.
func UserAgent() string {
	return "telltales/" + Version
}
