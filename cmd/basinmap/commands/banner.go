package commands

import (
	"fmt"

	"github.com/hydrofabric/basinmap/config"
	"github.com/hydrofabric/basinmap/version"
)

// printServeBanner prints the user-friendly startup message
func printServeBanner(cfg *config.Config) {
	cyan := "\033[36m"
	green := "\033[32m"
	blue := "\033[34m"
	bold := "\033[1m"
	reset := "\033[0m"

	info := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔══════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                          ║\n")
	fmt.Printf("   ║   ~~~ basinmap ~~~                       ║\n")
	fmt.Printf("   ║   hydrofabric catchment explorer         ║\n")
	fmt.Printf("   ║                                          ║\n")
	fmt.Printf("   ╚══════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ basinmap Info ──────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:     %s\n", green, reset, info.Short())
	fmt.Printf("%s│%s Listen:      %s:%d\n", green, reset, cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("%s│%s Hydrofabric: %s\n", green, reset, cfg.Hydrofabric.Path)
	fmt.Printf("%s│%s Output:      %s\n", green, reset, cfg.Output.Dir)
	if path := config.ConfigFilePath(); path != "" {
		fmt.Printf("%s│%s Config:      %s\n", green, reset, path)
	}
	fmt.Printf("%s└──────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
