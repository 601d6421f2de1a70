package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"wabot/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your wabot installation",
		Long: `Verifies that wabot's configuration, database, gateway settings and
intake port are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("wabot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'wabot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Data directory
			if info, err := os.Stat(cfg.General.DataDir); err != nil {
				printWarn("Data directory", fmt.Sprintf("not found: %s (created on first run)", cfg.General.DataDir))
				warned++
			} else if !info.IsDir() {
				printFail("Data directory", fmt.Sprintf("not a directory: %s", cfg.General.DataDir))
				failed++
			} else {
				printPass("Data directory", cfg.General.DataDir)
				passed++
			}

			// 4. Database writable
			if err := checkDatabase(cfg.History.DBPath); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.History.DBPath)
				passed++
			}

			// 5. Admin set
			if len(cfg.Chat.AdminIDs) == 0 {
				printWarn("Admins", "chat.adminIds is empty, admin commands are unreachable")
				warned++
			} else {
				printPass("Admins", fmt.Sprintf("%d configured", len(cfg.Chat.AdminIDs)))
				passed++
			}

			// 6. Classroom group
			if cfg.Chat.ClassroomGroupID == "" {
				printWarn("Classroom group", "not configured, classroom and reminder pushes are rejected")
				warned++
			} else {
				printPass("Classroom group", cfg.Chat.ClassroomGroupID)
				passed++
			}

			// 7. Timezone parses
			if _, err := time.LoadLocation(cfg.Chat.Timezone); err != nil {
				printFail("Timezone", fmt.Sprintf("%s: %v", cfg.Chat.Timezone, err))
				failed++
			} else {
				printPass("Timezone", cfg.Chat.Timezone)
				passed++
			}

			// 8. Resolver credentials
			if cfg.Resolver.Enabled {
				if cfg.Resolver.APIKey == "" {
					printWarn("Resolver", "enabled but resolver.apiKey is empty")
					warned++
				} else {
					printPass("Resolver", fmt.Sprintf("%s via %s", cfg.Resolver.Model, cfg.Resolver.BaseURL))
					passed++
				}
			} else {
				printWarn("Resolver", "disabled, free-form chat gets the static greeting")
				warned++
			}

			// 9. Intake port available
			if err := checkPort(cfg.Intake.Port); err != nil {
				printWarn("Intake port", fmt.Sprintf("port %d may be in use: %v", cfg.Intake.Port, err))
				warned++
			} else {
				printPass("Intake port", fmt.Sprintf(":%d available", cfg.Intake.Port))
				passed++
			}

			// 10. Persona directory when set
			if cfg.Resolver.PersonaDir != "" {
				if info, err := os.Stat(cfg.Resolver.PersonaDir); err != nil || !info.IsDir() {
					printWarn("Persona directory", fmt.Sprintf("not found: %s", cfg.Resolver.PersonaDir))
					warned++
				} else {
					printPass("Persona directory", cfg.Resolver.PersonaDir)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running wabot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nwabot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! wabot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
