// ABOUTME: Device contact import CLI commands
// ABOUTME: Handles Google OAuth setup and one-way address-book import
package cli

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"

	"github.com/harperreed/cardsync/sync"
)

// ImportInitCommand runs the OAuth flow for the Google contacts source.
func ImportInitCommand(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	_ = fs.Parse(args)

	if err := sync.OAuthReady(); err != nil {
		return err
	}

	ctx := context.Background()
	config := sync.NewOAuthConfig()

	// Local server for the OAuth callback
	callbackChan := make(chan *oauth2.Token)
	errChan := make(chan error)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/callback", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no authorization code received")
			return
		}

		token, err := config.Exchange(ctx, code)
		if err != nil {
			errChan <- fmt.Errorf("failed to exchange code: %w", err)
			return
		}

		callbackChan <- token
		_, _ = fmt.Fprintf(w, "Authorization successful! You can close this window.")
	})

	server := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	authURL := config.AuthCodeURL("state", oauth2.AccessTypeOffline)

	fmt.Println("Opening browser for Google OAuth...")
	fmt.Printf("\nIf browser doesn't open, visit this URL:\n%s\n\n", authURL)

	_ = openBrowser(authURL)

	select {
	case token := <-callbackChan:
		_ = server.Shutdown(ctx)

		if err := sync.SaveToken(token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}

		fmt.Printf("\n✓ Authenticated successfully\n")
		fmt.Printf("✓ Tokens saved to %s\n\n", sync.TokenPath())
		fmt.Println("Ready to import! Run 'cardsync import devices' to pull contacts.")
		return nil

	case err := <-errChan:
		_ = server.Shutdown(ctx)
		return fmt.Errorf("OAuth flow failed: %w", err)
	}
}

// ImportDevicesCommand imports contacts from the Google address book.
func ImportDevicesCommand(engine *sync.Engine, args []string) error {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	timeout := fs.Duration("timeout", 5*time.Minute, "Abort the import after this long")
	_ = fs.Parse(args)

	token, err := sync.LoadToken()
	if err != nil {
		return fmt.Errorf("not authenticated. Run 'cardsync import init' first: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	source, err := sync.NewPeopleSource(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to connect to Google contacts: %w", err)
	}

	fmt.Println("Importing device contacts...")
	imported, err := engine.ImportDeviceContacts(ctx, source)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("✓ Imported %d new contact(s)\n", imported)
	if imported == 0 {
		fmt.Println("  All device contacts already exist locally")
	}
	return nil
}

// openBrowser opens the default browser to the given URL.
func openBrowser(url string) error {
	var cmd string
	var cmdArgs []string

	switch runtime.GOOS {
	case "windows":
		cmd = "cmd"
		cmdArgs = []string{"/c", "start"}
	case "darwin":
		cmd = "open"
	default:
		cmd = "xdg-open"
	}
	cmdArgs = append(cmdArgs, url)
	return exec.Command(cmd, cmdArgs...).Start()
}
