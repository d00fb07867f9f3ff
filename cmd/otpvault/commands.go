package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkarpov/otpvault/internal/backup"
	"github.com/mkarpov/otpvault/internal/models"
	"github.com/mkarpov/otpvault/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the secrets in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.close()

		secrets, err := v.store.GetAll(context.Background())
		if err != nil {
			return err
		}
		if len(secrets) == 0 {
			fmt.Println("vault is empty")
			return nil
		}
		for _, rec := range secrets {
			rec = rec.Normalized()
			label := rec.Name
			if rec.Account != "" {
				label += " (" + rec.Account + ")"
			}
			fmt.Printf("%-36s  %-5s  %s\n", rec.ID, rec.Type, label)
		}
		return nil
	},
}

var (
	addName    string
	addAccount string
	addSecret  string
	addType    string
	addDigits  int
	addPeriod  int
	addCounter int64

	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Add a secret to the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.close()

			rec := models.SecretRecord{
				Name:    addName,
				Account: addAccount,
				Secret:  addSecret,
				Type:    models.SecretType(addType),
				Digits:  addDigits,
				Period:  addPeriod,
			}
			if rec.Type == models.HOTP {
				counter := addCounter
				rec.Counter = &counter
			}

			created, err := v.store.Add(context.Background(), rec)
			if err != nil {
				return err
			}
			fmt.Printf("added %s (%s)\n", created.Name, created.ID)
			return nil
		},
	}
)

var (
	backupsLimit   int
	backupsDetails bool

	backupsCmd = &cobra.Command{
		Use:   "backups",
		Short: "List the backup trail, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.close()

			page, err := v.backups.List(context.Background(), backup.ListOptions{
				Limit:   backupsLimit,
				Details: backupsDetails,
			})
			if err != nil {
				return err
			}
			if len(page.Entries) == 0 {
				fmt.Println("no backups yet")
				return nil
			}
			for _, entry := range page.Entries {
				if backupsDetails && entry.Count != backup.UnknownCount {
					fmt.Printf("%s  %3d records  %s\n", entry.Key, entry.Count, entry.Reason)
				} else {
					fmt.Println(entry.Key)
				}
			}
			if !page.Complete {
				fmt.Printf("... more (cursor %s)\n", page.Cursor)
			}
			return nil
		},
	}
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take an immediate backup of the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := openVault()
		if err != nil {
			return err
		}
		defer v.close()

		ctx := context.Background()
		secrets, err := v.store.GetAll(ctx)
		if err != nil {
			return err
		}
		result, err := v.scheduler.Trigger(ctx, secrets, store.ReasonManual, true)
		if err != nil {
			return err
		}
		fmt.Printf("backup %s (%d records)\n", result.Key, len(secrets))
		return nil
	},
}

var (
	restorePreview bool

	restoreCmd = &cobra.Command{
		Use:   "restore <backup-key>",
		Short: "Restore the vault from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.close()

			payload, err := v.pipeline.Restore(context.Background(), args[0], restorePreview)
			if err != nil {
				return err
			}
			if restorePreview {
				fmt.Printf("%s: %d records, reason %q\n", args[0], len(payload.Secrets), payload.Reason)
				for _, rec := range payload.Secrets {
					fmt.Printf("  %-5s  %s\n", rec.Type, rec.Name)
				}
				return nil
			}
			fmt.Printf("restored %d records from %s\n", len(payload.Secrets), args[0])
			return nil
		},
	}
)

var (
	exportFormat string
	exportOutput string

	exportCmd = &cobra.Command{
		Use:   "export <backup-key>",
		Short: "Export a backup as otpauth URIs, JSON or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openVault()
			if err != nil {
				return err
			}
			defer v.close()

			doc, _, err := v.pipeline.Export(context.Background(), args[0], exportFormat)
			if err != nil {
				return err
			}
			if exportOutput == "" || exportOutput == "-" {
				_, err = os.Stdout.Write(doc)
				return err
			}
			return os.WriteFile(exportOutput, doc, 0600)
		},
	}
)

func init() {
	addCmd.Flags().StringVar(&addName, "name", "", "display name (required)")
	addCmd.Flags().StringVar(&addAccount, "account", "", "account label")
	addCmd.Flags().StringVar(&addSecret, "secret", "", "base32 secret (required)")
	addCmd.Flags().StringVar(&addType, "type", string(models.TOTP), "totp or hotp")
	addCmd.Flags().IntVar(&addDigits, "digits", 0, "code digits")
	addCmd.Flags().IntVar(&addPeriod, "period", 0, "time step in seconds")
	addCmd.Flags().Int64Var(&addCounter, "counter", 0, "initial hotp counter")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("secret")

	backupsCmd.Flags().IntVar(&backupsLimit, "limit", 20, "page size")
	backupsCmd.Flags().BoolVar(&backupsDetails, "details", false, "decode each backup for record counts")

	restoreCmd.Flags().BoolVar(&restorePreview, "preview", false, "show the backup without restoring it")

	exportCmd.Flags().StringVar(&exportFormat, "format", backup.FormatURI, "uri, json or csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
}
