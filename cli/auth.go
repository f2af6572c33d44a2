// ABOUTME: Service credential CLI commands
// ABOUTME: Configures the remote sync service URL, token, and device identity
package cli

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/harperreed/cardsync/sync"
)

// AuthCommand configures the remote sync service credentials.
func AuthCommand(args []string) error {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	server := fs.String("server", "", "Sync service URL (prompted if omitted)")
	_ = fs.Parse(args)

	settings, err := sync.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	serverURL := *server
	if serverURL == "" {
		prompt := "Sync service URL"
		if settings.Server != "" {
			prompt += fmt.Sprintf(" [%s]", settings.Server)
		}
		fmt.Printf("%s: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		serverURL = strings.TrimSpace(line)
		if serverURL == "" {
			serverURL = settings.Server
		}
	}
	if serverURL == "" {
		return fmt.Errorf("a sync service URL is required")
	}

	// Token input stays off the terminal
	fmt.Print("Access token: ")
	tokenBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return fmt.Errorf("an access token is required")
	}

	settings.Server = serverURL
	settings.Token = token
	if settings.DeviceID == "" {
		settings.DeviceID = sync.GenerateDeviceID()
	}

	if err := sync.SaveSettings(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	fmt.Printf("✓ Credentials saved to %s\n", sync.SettingsPath())
	fmt.Printf("  Server: %s\n", settings.Server)
	fmt.Printf("  Device ID: %s\n", settings.DeviceID)
	return nil
}

// AuthStatusCommand shows whether the service connection is configured.
func AuthStatusCommand(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	_ = fs.Parse(args)

	settings, err := sync.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if !settings.IsConfigured() {
		fmt.Println("Not configured. Run 'cardsync auth' to connect a sync service.")
		return nil
	}

	fmt.Println("Sync service")
	fmt.Printf("  Server: %s\n", settings.Server)
	fmt.Printf("  Device ID: %s\n", settings.DeviceID)
	fmt.Println("  Token: configured")
	return nil
}
