package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"tunnelfy/internal/ssh"
)

func main() {
	serverAddr := flag.String("server", "localhost:22", "SSH server address (e.g., localhost:22)")
	username := flag.String("user", "", "SSH username for authentication")
	keyPath := flag.String("key", "", "Path to the private SSH key file (falls back to $SSH_KEY)")
	password := flag.String("password", "", "SSH password (used only if -key is unset)")
	localAddr := flag.String("local", "localhost:3000", "Local service address to forward (e.g., localhost:3000)")
	remotePort := flag.Uint("remote-port", 0, "Remote port to request (0 lets the server choose)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	if *username == "" {
		log.Fatal("Error: -user flag is required")
	}

	resolvedKey := *keyPath
	if resolvedKey == "" {
		resolvedKey = os.Getenv("SSH_KEY")
	}
	if resolvedKey != "" {
		resolvedKey = expandTilde(resolvedKey)
	}
	if resolvedKey == "" && *password == "" {
		log.Fatal("Error: one of -key (or $SSH_KEY) or -password is required")
	}

	localHost, localPort, err := net.SplitHostPort(*localAddr)
	if err != nil {
		log.Fatalf("Error: invalid -local address %q: %v", *localAddr, err)
	}
	if v := os.Getenv("LOCAL_PORT"); v != "" {
		localPort = v
	}
	localPortNum, err := strconv.Atoi(localPort)
	if err != nil {
		log.Fatalf("Error: invalid local port %q: %v", localPort, err)
	}

	serverHost, serverPortStr, err := net.SplitHostPort(*serverAddr)
	if err != nil {
		log.Fatalf("Error: invalid -server address %q: %v", *serverAddr, err)
	}
	serverPortNum, err := strconv.Atoi(serverPortStr)
	if err != nil {
		log.Fatalf("Error: invalid server port %q: %v", serverPortStr, err)
	}

	var logger *log.Logger
	if *verbose {
		logger = log.New(os.Stderr, "SSHClient: ", log.LstdFlags|log.Lmsgprefix)
	} else {
		logger = log.New(os.Stderr, "", 0)
	}

	cfg := ssh.Config{
		ServerAddr: serverHost,
		ServerPort: serverPortNum,
		Username:   *username,
		KeyPath:    resolvedKey,
		Password:   *password,
		RemotePort: uint32(*remotePort),
		LocalAddr:  localHost,
		LocalPort:  localPortNum,
	}

	client := ssh.NewClient(cfg, logger)
	logger.Printf("Starting tunnelfy-client...")
	logger.Printf("  Server: %s", *serverAddr)
	logger.Printf("  Username: %s", *username)
	logger.Printf("  Local: %s", *localAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("🛑 %v received. Shutting down...", sig)
		cancel()
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- client.RunWithMessageHandler(ctx, func(msg ssh.ServerMessage) {
			stream := "stdout"
			if msg.Stream == ssh.StreamStderr {
				stream = "stderr"
			}
			logger.Printf("server[%s]: %s", stream, msg.Text)
		})
	}()

	logger.Printf("✅ Tunnel requested; waiting for server confirmation...")

	if err := <-runErr; err != nil {
		logger.Fatalf("❌ Tunnel ended with error: %v", err)
	}
	logger.Println("✅ Client stopped gracefully.")
}

// expandTilde expands a leading "~" or "~/" to the user's home directory,
// mirroring shell behavior for paths passed on the command line.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
