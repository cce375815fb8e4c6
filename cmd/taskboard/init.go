package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/model"
)

// runInit provisions a user: default preferences and widgets, a fresh API
// key for the relay, and a config file naming the subject.
func runInit(cfg *model.AppConfig, configPath string, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	userID := fs.String("user", cfg.Subject.UserID, "user id to provision")
	workspaceID := fs.String("workspace", cfg.Subject.WorkspaceID, "default workspace id")
	keyName := fs.String("key-name", "dashboard", "label for the generated API key")
	noKeyring := fs.Bool("no-keyring", false, "print the API key instead of storing it in the system keyring")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*userID) == "" {
		return errors.New("--user is required")
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
	defer cancel()

	if _, err := s.CreateDefaultPreferences(ctx, *userID); err != nil {
		return err
	}
	widgets, err := s.CreateDefaultWidgets(ctx, *userID)
	if err != nil {
		return err
	}
	key, err := s.GenerateAPIKey(ctx, *userID, *keyName)
	if err != nil {
		return err
	}

	if *noKeyring {
		fmt.Fprintf(os.Stdout, "API key (shown once): %s\n", key)
	} else if err := credential.Set(credential.APIKeyName, key); err != nil {
		return fmt.Errorf("storing API key: %w (retry with --no-keyring)", err)
	}

	cfg.Subject = model.SubjectConfig{UserID: *userID, WorkspaceID: *workspaceID}
	if err := model.SaveSubject(configPath, cfg.Subject); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Provisioned %s with %d widgets; config written to %s\n", *userID, len(widgets), configPath)
	return nil
}
