package banner

import "fmt"

const banner = `
 _   _  ___  _  ___ ___ ___  ___   _   ___ ___
| | | |/ _ \| |/ __| __| _ )/ _ \ /_\ | _ \   \
| |_| | (_) | | (__| _|| _ \ (_) / _ \|   / |) |
 \___/ \___/|_|\___|___|___/\___/_/ \_\_|_\___/
`

// Print writes the startup banner with the effective runtime info.
func Print(dbPath, usage, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if usage != "" {
		fmt.Printf("Usage:    %s\n", usage)
	}
	fmt.Println("\nLocal-only voice bulletin board; no network surface.")
}
