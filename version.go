package ramal

// Version is the release of the module. Overridden at build time with
// -ldflags "-X github.com/aretw0/ramal.Version=...".
var Version = "0.3.0-dev"
