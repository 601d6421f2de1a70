package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"wabot/internal/config"

	"github.com/spf13/cobra"
)

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: gateway → admins → classroom → resolver → intake",
		Long:  "Guides you through the gateway connection, the admin set, the classroom group and the resolver credentials. Writes config to the path used by --config or default.",
		RunE:  runWizard,
	}
}

func runWizard(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Defaults()
	}

	reader := bufio.NewReader(os.Stdin)
	prompt := func(def string) (string, error) {
		if def != "" {
			fmt.Fprintf(os.Stdout, " [%s]: ", def)
		} else {
			fmt.Fprint(os.Stdout, ": ")
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" && def != "" {
			return def, nil
		}
		return s, nil
	}

	// Step 1: Gateway
	fmt.Println("\n--- Step 1: WhatsApp gateway ---")
	fmt.Fprint(os.Stdout, "Gateway REST base URL")
	baseURL, err := prompt(cfg.Gateway.BaseURL)
	if err != nil {
		return err
	}
	cfg.Gateway.BaseURL = baseURL

	fmt.Fprint(os.Stdout, "Gateway bearer token (empty for none)")
	token, err := prompt(cfg.Gateway.Token)
	if err != nil {
		return err
	}
	cfg.Gateway.Token = token

	fmt.Fprint(os.Stdout, "Gateway websocket event feed URL (empty to rely on webhooks)")
	streamURL, err := prompt(cfg.Gateway.StreamURL)
	if err != nil {
		return err
	}
	cfg.Gateway.StreamURL = streamURL
	fmt.Fprintf(os.Stdout, "  Using gateway: %s\n", cfg.Gateway.BaseURL)

	// Step 2: Admins
	fmt.Println("\n--- Step 2: Admins ---")
	fmt.Fprint(os.Stdout, "Admin phone ids, comma separated (e.g. 6281234567890)")
	admins, err := prompt(strings.Join(cfg.Chat.AdminIDs, ","))
	if err != nil {
		return err
	}
	cfg.Chat.AdminIDs = nil
	for _, id := range strings.Split(admins, ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.Chat.AdminIDs = append(cfg.Chat.AdminIDs, id)
		}
	}

	fmt.Fprint(os.Stdout, "Admin command marker")
	marker, err := prompt(cfg.Chat.AdminMarker)
	if err != nil {
		return err
	}
	cfg.Chat.AdminMarker = marker
	fmt.Fprintf(os.Stdout, "  Admins: %d, marker: %s\n", len(cfg.Chat.AdminIDs), cfg.Chat.AdminMarker)

	// Step 3: Classroom
	fmt.Println("\n--- Step 3: Classroom ---")
	fmt.Fprint(os.Stdout, "Class group id (empty to disable classroom pushes)")
	group, err := prompt(cfg.Chat.ClassroomGroupID)
	if err != nil {
		return err
	}
	cfg.Chat.ClassroomGroupID = group

	fmt.Fprint(os.Stdout, "Audience timezone (IANA name)")
	tz, err := prompt(cfg.Chat.Timezone)
	if err != nil {
		return err
	}
	if _, tzErr := time.LoadLocation(tz); tzErr != nil {
		fmt.Fprintf(os.Stdout, "  Unknown timezone %q, keeping %s\n", tz, cfg.Chat.Timezone)
	} else {
		cfg.Chat.Timezone = tz
	}

	// Step 4: Resolver
	fmt.Println("\n--- Step 4: Chat resolver ---")
	fmt.Fprint(os.Stdout, "Answer free-form chat with a language model? (y/n)")
	def := "n"
	if cfg.Resolver.Enabled {
		def = "y"
	}
	enable, err := prompt(def)
	if err != nil {
		return err
	}
	cfg.Resolver.Enabled = enable == "y" || enable == "yes"
	if cfg.Resolver.Enabled {
		fmt.Fprint(os.Stdout, "API key: paste key or env var reference")
		key, err := prompt("${OPENAI_API_KEY}")
		if err != nil {
			return err
		}
		if key != "" {
			cfg.Resolver.APIKey = key
		}
		fmt.Fprint(os.Stdout, "Model name")
		model, err := prompt(cfg.Resolver.Model)
		if err != nil {
			return err
		}
		cfg.Resolver.Model = model
		fmt.Fprintf(os.Stdout, "  Using model: %s\n", cfg.Resolver.Model)
	} else {
		fmt.Println("  Free-form chat will get the static greeting.")
	}

	// Step 5: Intake
	fmt.Println("\n--- Step 5: Intake server ---")
	fmt.Fprint(os.Stdout, "Webhook listen port")
	portStr, err := prompt(strconv.Itoa(cfg.Intake.Port))
	if err != nil {
		return err
	}
	if port, pErr := strconv.Atoi(portStr); pErr == nil && port > 0 && port < 65536 {
		cfg.Intake.Port = port
	} else {
		fmt.Fprintf(os.Stdout, "  Invalid port %q, keeping %d\n", portStr, cfg.Intake.Port)
	}

	fmt.Fprint(os.Stdout, "Webhook HMAC secret (empty to skip signature checks)")
	secret, err := prompt(cfg.Intake.WebhookSecret)
	if err != nil {
		return err
	}
	cfg.Intake.WebhookSecret = secret

	// Save
	cfgDir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nConfig saved to %s\n", cfgPath)
	fmt.Println("Next: run 'wabot doctor' to verify, then 'wabot serve'.")
	return nil
}
