package cmd

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/gentyr/gentyr-sub005/internal/dashboard"
	"github.com/gentyr/gentyr-sub005/internal/logging"
	"github.com/spf13/cobra"
)

var servePort int
var requireAuth bool
var bindAll bool
var useTailscale bool
var tailscaleIP string
var serveSilent bool

func detectTailscaleIP() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range interfaces {
		if !strings.Contains(strings.ToLower(iface.Name), "tailscale") {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				ip := ipnet.IP
				if ip.To4() != nil && !ip.IsLoopback() {
					return ip.String()
				}
			}
		}
	}

	return ""
}

// resolveBindHost picks the listen address from the flags. The detect
// function is only consulted for --tailscale without an explicit IP.
func resolveBindHost(all, tailscale bool, explicitIP string, detect func() string) string {
	switch {
	case all:
		return "0.0.0.0"
	case tailscale && explicitIP != "":
		return explicitIP
	case tailscale:
		if ip := detect(); ip != "" {
			return ip
		}
	}
	return "127.0.0.1"
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveSilent {
			return startServerInBackground(cmd)
		}

		logger := logging.NewLogger("dashboard")

		tokens := cfg.AuthTokens
		if requireAuth || bindAll || useTailscale {
			if len(tokens) == 0 {
				return fmt.Errorf("external access requires authentication; set CTODASH_AUTH_TOKENS or use 'ctodash token generate --save'")
			}
			requireAuth = true
		}

		bindHost := resolveBindHost(bindAll, useTailscale, tailscaleIP, detectTailscaleIP)
		if useTailscale && tailscaleIP == "" && bindHost == "127.0.0.1" {
			logger.Warn().Msg("Tailscale interface not detected, use --tailscale-ip to specify manually")
		}

		server := dashboard.NewServer(newSources(), dashboard.Options{
			RequireAuth: requireAuth,
			Tokens:      tokens,
		}, logger)

		if requireAuth {
			logger.Info().Int("tokens", len(tokens)).Msg("authentication enabled; external requests need X-Auth-Token header or token query parameter")
		}
		return server.Run(net.JoinHostPort(bindHost, strconv.Itoa(servePort)))
	},
}

// backgroundArgs rebuilds the serve flags for the detached child. The
// project dir is passed as a flag so it outranks inherited environment.
func backgroundArgs(projectDir string) []string {
	args := []string{"serve", "-p", strconv.Itoa(servePort), "--project-dir", projectDir}
	if cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}
	if requireAuth {
		args = append(args, "--auth")
	}
	if bindAll {
		args = append(args, "--bind-all")
	}
	if useTailscale {
		args = append(args, "--tailscale")
	}
	if tailscaleIP != "" {
		args = append(args, "--tailscale-ip", tailscaleIP)
	}
	return args
}

func startServerInBackground(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Starting ctodash server in the background...")

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable path: %w", err)
	}

	child := exec.Command(exePath, backgroundArgs(cfg.ProjectDir)...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	if err := child.Start(); err != nil {
		return fmt.Errorf("starting server process: %w", err)
	}

	host := resolveBindHost(bindAll, useTailscale, tailscaleIP, detectTailscaleIP)
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s/health", net.JoinHostPort(host, strconv.Itoa(servePort)))

	fmt.Fprintf(out, "Waiting for %s ...\n", url)

	client := &http.Client{Timeout: 2 * time.Second}
	maxAttempts := 15
	for i := 0; i < maxAttempts; i++ {
		time.Sleep(500 * time.Millisecond)
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			fmt.Fprintf(out, "✓ Server is online (pid %d)\n", child.Process.Pid)
			return nil
		}
	}

	return fmt.Errorf("server failed to start within %d seconds", maxAttempts/2)
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&requireAuth, "auth", false, "Require token authentication (reads from CTODASH_AUTH_TOKENS env or ~/.ctodash/tokens)")
	serveCmd.Flags().BoolVar(&bindAll, "bind-all", false, "Bind to all interfaces (0.0.0.0) - requires auth token")
	serveCmd.Flags().BoolVar(&useTailscale, "tailscale", false, "Bind to Tailscale interface")
	serveCmd.Flags().StringVar(&tailscaleIP, "tailscale-ip", "", "Tailscale IP address (auto-detected if not specified)")
	serveCmd.Flags().BoolVar(&serveSilent, "silent", false, "Start server in background and exit")
	rootCmd.AddCommand(serveCmd)
}
