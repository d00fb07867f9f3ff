// Package main implements the otpvault CLI for working with a local
// vault file: listing and adding secrets, browsing the backup trail,
// restoring and exporting.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkarpov/otpvault/internal/backup"
	"github.com/mkarpov/otpvault/internal/envelope"
	"github.com/mkarpov/otpvault/internal/logger"
	"github.com/mkarpov/otpvault/internal/repository"
	"github.com/mkarpov/otpvault/internal/store"
)

var (
	dataFile      string
	encryptionKey string

	rootCmd = &cobra.Command{
		Use:           "otpvault",
		Short:         "Manage an authenticator-secret vault file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// vault bundles the opened components a command works with.
type vault struct {
	store     *store.Store
	backups   *backup.Repository
	scheduler *backup.Scheduler
	pipeline  *backup.Pipeline
	close     func()
}

// openVault opens the embedded database and wires the store and the
// backup engine around it.
func openVault() (*vault, error) {
	log := logger.New()
	if err := log.Init("warn"); err != nil {
		return nil, err
	}

	key := encryptionKey
	if key == "" {
		key = os.Getenv("OTPVAULT_ENCRYPTION_KEY")
	}
	codec, err := envelope.New(envelope.DeriveKey(key), log.Log)
	if err != nil {
		return nil, err
	}

	kv, err := repository.OpenBolt(dataFile)
	if err != nil {
		return nil, err
	}

	secretStore := store.New(kv, codec, log.Log)
	backupRepo := backup.NewRepository(kv, codec, log.Log)
	scheduler := backup.NewScheduler(backupRepo, codec, log.Log, backup.Config{
		MaxBackups:  100,
		AutoCleanup: true,
	})
	secretStore.SetNotifier(scheduler)

	return &vault{
		store:     secretStore,
		backups:   backupRepo,
		scheduler: scheduler,
		pipeline:  backup.NewPipeline(backupRepo, secretStore, log.Log),
		close:     func() { _ = kv.Close(); _ = log.Log.Sync() },
	}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataFile, "file", "f", "otpvault.db", "vault database file")
	rootCmd.PersistentFlags().StringVarP(&encryptionKey, "key", "k", "", "encryption key or passphrase")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
