package rewind

// Version is the module version, overridden at build time with
// -ldflags "-X github.com/aretw0/rewind.Version=...".
var Version = "0.1.0-dev"
