package version

// Version is the convkit release, overridden at link time with
// -ldflags "-X github.com/born-ml/convkit/internal/version.Version=...".
var Version = "0.1.0"
