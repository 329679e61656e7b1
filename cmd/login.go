// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"askbank/cli/internal/config"
	"askbank/cli/internal/keychain"
	"askbank/cli/internal/llm"
	"askbank/cli/internal/logging"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginModel   string
	loginBaseURL string
	loginVerify  bool
)

// loginCmd stores the chat model API key in the OS keychain.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Store the chat model API key",
	Long: `The login command prompts for the API key of an OpenAI-compatible chat model
endpoint, verifies it with a short request and stores it in the OS keychain.
--model and --base-url are saved to the config file.

OPENAI_API_KEY, when set, takes precedence over the stored key.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if loginModel != "" {
			cfg.LLM.Model = loginModel
		}
		if loginBaseURL != "" {
			cfg.LLM.BaseURL = loginBaseURL
		}

		fmt.Print("Enter API key: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read API key: %w", err)
		}
		key := strings.TrimSpace(string(raw))
		if key == "" {
			return errors.New("API key is required")
		}

		if loginVerify {
			if err := verifyModel(cmd.Context(), cfg, key); err != nil {
				logging.PresentProviderError(err)
				return err
			}
		}

		km, err := keychain.GetManager()
		if err != nil {
			fmt.Println("❌ Secure storage is not available on this system.")
			fmt.Println("   Set OPENAI_API_KEY instead.")
			return err
		}
		if err := km.SaveAPIKey(key); err != nil {
			fmt.Println("❌ Failed to save the API key securely.")
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}

		fmt.Printf("✅ API key saved. Using %s at %s\n", cfg.LLM.Model, cfg.LLM.BaseURL)
		return nil
	},
}

func verifyModel(ctx context.Context, cfg config.Config, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stop := startInlineSpinner(os.Stdout, "verifying API key", spinnerFrames, 100*time.Millisecond)
	defer stop()

	m, err := llm.NewChatModel(ctx, llm.Config{
		APIKey:  key,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout(),
	})
	if err != nil {
		return err
	}
	_, err = llm.NewClient(m, llm.WithBackoff(0)).Ask(ctx, "ping")
	return err
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginModel, "model", "", "Chat model name, e.g. qwen-plus")
	loginCmd.Flags().StringVar(&loginBaseURL, "base-url", "", "OpenAI-compatible endpoint")
	loginCmd.Flags().BoolVar(&loginVerify, "verify", true, "Send a short request to verify the key")
}
