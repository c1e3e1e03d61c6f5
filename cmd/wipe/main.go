package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"wipe-go/internal/app"
	"wipe-go/internal/certdoc"
	"wipe-go/internal/config"
	"wipe-go/internal/encryption"
	"wipe-go/internal/fs"
	"wipe-go/internal/wipe"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a WipeApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Erase", "History").
func newApp(ctx context.Context, operation, parameters string) (*app.WipeApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewWipeApp(ctx, cfg, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "wipe",
	Short:        "Secure drive erasure with verifiable certificates",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		stationID, _ := cmd.Flags().GetString("station")
		if stationID == "" {
			stationID = uuid.New().String()
		}

		cfg := config.NewConfig(stationID, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Station ID: %s\n", stationID)
		fmt.Printf("Base Dir:   %s\n", defaults["base_dir"])
		fmt.Println("Run 'wipe keys init' before archiving encrypted certificates.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Station ID: %s\n", cfg.StationID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Executor:   %s\n", cfg.Executor.Type)
		fmt.Printf("Journal:    %s\n", cfg.Journal.Type)
		for _, a := range cfg.Archives {
			enc := ""
			if a.Encrypt {
				enc = " (encrypted)"
			}
			fmt.Printf("Archive:    %s [%s]%s\n", a.Name, a.Type, enc)
		}
		if len(cfg.Protected) > 0 {
			fmt.Printf("Protected:  %s\n", strings.Join(cfg.Protected, ", "))
		}
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify archives and journal are usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CheckSetup", "")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CheckSetup(); err != nil {
			a.Fail()
			return err
		}
		fmt.Println("Setup OK")
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage certificate encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}

		pass, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Keys written to %s and %s\n", cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// drive command
var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Inspect drives",
}

var driveDescribeCmd = &cobra.Command{
	Use:   "describe PATH",
	Short: "Show what wipe knows about a drive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "DescribeDrive", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.DescribeDrive(args[0], overridesFromFlags(cmd))
		if err != nil {
			a.Fail()
			return err
		}
		fmt.Println(d.Summary())
		fmt.Printf("  Name:     %s\n", d.DisplayName)
		fmt.Printf("  Capacity: %d bytes\n", d.CapacityBytes)
		fmt.Printf("  Model:    %s\n", orDash(d.Model))
		fmt.Printf("  Serial:   %s\n", orDash(d.Serial))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View erase attempt history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "History", "")
		if err != nil {
			return err
		}
		defer a.Close()

		attempts, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(attempts) == 0 {
			fmt.Println("No erase attempts recorded.")
			return nil
		}

		for _, at := range attempts {
			duration := ""
			if at.FinishedAt != nil {
				duration = at.FinishedAt.Sub(at.StartedAt).Truncate(time.Second).String()
			}
			result := at.CertificateID
			if at.ErrorKind != "" {
				result = at.ErrorKind
			}
			fmt.Printf("%s  %-12s  %-6s  %d/%d  %-9s  %-8s  %s\n",
				at.StartedAt.Local().Format("2006-01-02 15:04:05"),
				at.DrivePath,
				at.Method,
				at.PassesCompleted,
				at.PassCount,
				at.Status,
				duration,
				result,
			)
		}
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old finished attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("older-than-days")
		if days <= 0 {
			return fmt.Errorf("--older-than-days must be positive")
		}

		a, err := newApp(cmd.Context(), "PruneHistory", fmt.Sprintf("%dd", days))
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.PruneHistory(time.Now().AddDate(0, 0, -days))
		if err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Removed %d attempt(s)\n", n)
		return nil
	},
}

var historyBackupCmd = &cobra.Command{
	Use:   "backup FILE",
	Short: "Write a copy of the journal database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "BackupJournal", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.BackupJournal(args[0]); err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Journal written to %s\n", args[0])
		return nil
	},
}

// cert command
var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Work with erase certificates",
}

var certShowCmd = &cobra.Command{
	Use:   "show CERTIFICATE_ID",
	Short: "Print an archived certificate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ShowCertificate", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		format, err := formatFlag(cmd, certdoc.FormatText)
		if err != nil {
			return err
		}

		v, err := a.FetchCertificate(args[0], readPassphrase)
		if err != nil {
			a.Fail()
			return err
		}
		if !v.SealValid {
			a.Fail()
			return fmt.Errorf("certificate %s does not match its seal", args[0])
		}
		doc, err := certdoc.Render(v.Certificate, format)
		if err != nil {
			return err
		}
		os.Stdout.Write(doc)
		return nil
	},
}

var certVerifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Check a certificate document against its seal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "VerifyCertificate", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		check, err := a.CheckDocument(data)
		if err != nil {
			a.Fail()
			return err
		}
		cert := check.Certificate
		fmt.Printf("%s  %s  %s\n", cert.ID, cert.Drive.Summary(), cert.CompletedAt.Format(time.RFC3339))
		if check.Attempt != nil {
			fmt.Printf("Journal: attempt %s on this station\n", check.Attempt.ID)
		} else {
			fmt.Println("Journal: not recorded on this station")
		}
		if !check.SealValid {
			a.Fail()
			return fmt.Errorf("seal mismatch: document was modified after issuance")
		}
		fmt.Println("Seal: valid")
		return nil
	},
}

func overridesFromFlags(cmd *cobra.Command) fs.Overrides {
	name, _ := cmd.Flags().GetString("name")
	model, _ := cmd.Flags().GetString("model")
	serial, _ := cmd.Flags().GetString("serial")
	media, _ := cmd.Flags().GetString("media")

	o := fs.Overrides{DisplayName: name, Model: model, Serial: serial}
	if media != "" {
		o.MediaType = wipe.ParseMediaType(media)
	}
	return o
}

func addDriveFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Display name for the drive")
	cmd.Flags().String("model", "", "Drive model, overrides the probed value")
	cmd.Flags().String("serial", "", "Drive serial number, overrides the probed value")
	cmd.Flags().String("media", "", "Media type: hdd, ssd or nvme")
}

func formatFlag(cmd *cobra.Command, fallback certdoc.Format) (certdoc.Format, error) {
	raw, _ := cmd.Flags().GetString("format")
	if raw == "" {
		return fallback, nil
	}
	return certdoc.ParseFormat(raw)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("station", "", "Station ID recorded in certificates (default: random UUID)")
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCheckCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// drive subcommands
	driveCmd.AddCommand(driveDescribeCmd)
	addDriveFlags(driveDescribeCmd)

	// history subcommands
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of attempts to show")
	historyCmd.AddCommand(historyPruneCmd)
	historyPruneCmd.Flags().Int("older-than-days", 0, "Remove finished attempts older than this many days")
	historyCmd.AddCommand(historyBackupCmd)

	// cert subcommands
	certCmd.AddCommand(certShowCmd)
	certShowCmd.Flags().StringP("format", "f", "", "Output format: text, json, yaml or toml")
	certCmd.AddCommand(certVerifyCmd)

	// erase
	addDriveFlags(eraseCmd)
	eraseCmd.Flags().StringP("method", "m", "quick", "Erase method: quick or secure")
	eraseCmd.Flags().String("confirm", "", "Type DELETE to confirm without prompting")
	eraseCmd.Flags().Bool("yes", false, "Acknowledge that all data on the drive will be destroyed")
	eraseCmd.Flags().StringP("output", "o", "", "Write the certificate document to this file")
	eraseCmd.Flags().StringP("format", "f", "", "Certificate document format (default: config export format)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(driveCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(certCmd)
}
