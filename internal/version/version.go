package version

var (
	AppName   = "radio-vecher"
	Version   = "dev"
	BuildDate = "unknown"
)
