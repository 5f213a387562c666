// Package main saves a sample conversation, either through the API or
// straight into the configured store.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/ace-assistant/internal/config"
	"github.com/capitalize-ai/ace-assistant/internal/model"
	"github.com/capitalize-ai/ace-assistant/internal/service"
	"github.com/capitalize-ai/ace-assistant/internal/store"
	"github.com/capitalize-ai/ace-assistant/pkg/logger"
)

var (
	apiURL  string
	title   string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Save a sample conversation",
	Long: `Save the sample conversation "Hello!" / "Hi there, how can I help?".

By default the conversation is posted to POST /api/conversations of a
running server. The "direct" subcommand writes it to the store configured
by STORE_DRIVER, DATABASE_URL and SQLITE_PATH instead.`,
	SilenceUsage: true,
	RunE:         runPost,
}

var directCmd = &cobra.Command{
	Use:   "direct",
	Short: "Write the sample straight to the configured store",
	RunE:  runDirect,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&title, "title", "Sample Chat", "conversation title")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	rootCmd.Flags().StringVar(&apiURL, "url", "http://localhost:8080", "API base URL")
	rootCmd.AddCommand(directCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func sampleConversation() *model.SaveConversationRequest {
	return &model.SaveConversationRequest{
		Title: title,
		Messages: []model.MessageInput{
			{Role: "user", Content: "Hello!"},
			{Role: "assistant", Content: "Hi there, how can I help?"},
		},
	}
}

func runPost(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	body, err := json.Marshal(sampleConversation())
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(apiURL, "/") + "/api/conversations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post sample: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(data)))
	return nil
}

func runDirect(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg := config.Load()
	log := logger.Global()

	gateway, err := store.Open(ctx, store.Config{
		Driver:      store.Driver(cfg.StoreDriver),
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer gateway.Close()

	id, err := service.NewConversationService(gateway, log).Save(ctx, sampleConversation())
	if err != nil {
		return err
	}

	log.Info("sample conversation saved", zap.String("conversation_id", id), zap.String("driver", cfg.StoreDriver))
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
