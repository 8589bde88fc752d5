package main

// Build-time variables, populated via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	Execute()
}
