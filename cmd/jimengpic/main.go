package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/comeonzhj/jimengpic-mcp/internal/config"
	"github.com/comeonzhj/jimengpic-mcp/internal/jimeng"
	"github.com/comeonzhj/jimengpic-mcp/internal/server"
	"github.com/comeonzhj/jimengpic-mcp/internal/sign"
)

var rootCmd = &cobra.Command{
	Use:   "jimengpic",
	Short: "jimengpic - Jimeng AI image generation MCP server",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the image generation tools over MCP stdio",
	RunE:  runServe,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a single image and print its URL",
	RunE:  runGenerate,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show jimengpic configuration status",
	RunE:  runStatus,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize the config file",
	RunE:  runOnboard,
}

var (
	descriptionFlag string
	textFlag        string
	ratioFlag       string
)

func init() {
	generateCmd.Flags().StringVarP(&descriptionFlag, "description", "d", "", "Description of the image to generate")
	generateCmd.Flags().StringVarP(&textFlag, "text", "t", "", "Text to render on a poster-style image")
	generateCmd.Flags().StringVarP(&ratioFlag, "ratio", "r", jimeng.DefaultRatio, "Aspect ratio (1:1, 4:3, 3:4, 16:9, 9:16)")
	rootCmd.AddCommand(serveCmd, generateCmd, statusCmd, onboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Credentials are checked per tool call so a host can still list tools
	// and get a readable error while keys are being set up.
	return server.New(cfg).Run(context.Background())
}

func runGenerate(cmd *cobra.Command, args []string) error {
	return runGenerateWithOutput(cmd.OutOrStdout())
}

// runGenerateWithOutput runs the one-shot generation with injectable output
// for testing.
func runGenerateWithOutput(stdout io.Writer) error {
	if descriptionFlag == "" && textFlag == "" {
		return fmt.Errorf("either --description or --text is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return fmt.Errorf("%w; set JIMENG_ACCESS_KEY and JIMENG_SECRET_KEY or run 'jimengpic onboard'", err)
	}

	client := newClient(cfg)

	var builder jimeng.PromptBuilder = jimeng.GeneralPrompt{}
	input := descriptionFlag
	if textFlag != "" {
		builder = jimeng.PosterPrompt{}
		input = textFlag
	}

	width, height := builder.Size(ratioFlag)
	url, err := client.Generate(context.Background(), builder.Build(input), width, height)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	if url == "" {
		fmt.Fprintln(stdout, "No image returned for this prompt.")
		return nil
	}
	fmt.Fprintln(stdout, url)
	return nil
}

func newClient(cfg *config.Config) *jimeng.Client {
	return jimeng.NewClient(jimeng.Config{
		Credentials: sign.Credentials{
			AccessKey: cfg.Jimeng.AccessKey,
			SecretKey: cfg.Jimeng.SecretKey,
		},
		Sign: sign.Config{
			Endpoint: cfg.Jimeng.Endpoint,
			Host:     cfg.Jimeng.Host,
			Region:   cfg.Jimeng.Region,
			Service:  cfg.Jimeng.Service,
		},
		ReqKey: cfg.Jimeng.ReqKey,
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return runStatusWithOutput(cmd.OutOrStdout())
}

func runStatusWithOutput(stdout io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(stdout, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(stdout, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(stdout, "Endpoint: %s\n", cfg.Jimeng.Endpoint)
	fmt.Fprintf(stdout, "Region: %s\n", cfg.Jimeng.Region)
	fmt.Fprintf(stdout, "Service: %s\n", cfg.Jimeng.Service)
	fmt.Fprintf(stdout, "Req key: %s\n", cfg.Jimeng.ReqKey)
	fmt.Fprintf(stdout, "Access key: %s\n", maskKey(cfg.Jimeng.AccessKey))
	fmt.Fprintf(stdout, "Secret key: %s\n", maskKey(cfg.Jimeng.SecretKey))

	if errors.Is(cfg.ValidateCredentials(), config.ErrMissingCredentials) {
		fmt.Fprintln(stdout, "\nCredentials missing. Set JIMENG_ACCESS_KEY / JIMENG_SECRET_KEY or run 'jimengpic onboard'.")
	}
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	return runOnboardWithOutput(cmd.OutOrStdout())
}

func runOnboardWithOutput(stdout io.Writer) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if err := config.SaveConfig(cfg); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(stdout, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(stdout, "Config already exists: %s\n", cfgPath)
	}

	fmt.Fprintln(stdout, "\nNext steps:")
	fmt.Fprintf(stdout, "  1. Edit %s to set your Volcengine access key pair\n", cfgPath)
	fmt.Fprintln(stdout, "  2. Or set JIMENG_ACCESS_KEY and JIMENG_SECRET_KEY environment variables")
	fmt.Fprintln(stdout, "  3. Run 'jimengpic generate -d \"a red fox\"' to test")
	fmt.Fprintln(stdout, "  4. Point your MCP host at 'jimengpic serve'")

	return nil
}

func maskKey(key string) string {
	if key == "" {
		return "not set"
	}
	if len(key) <= 8 {
		return "set"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
