package marclsp

// Version is the marclsp core version.
const Version = "0.1.0"
