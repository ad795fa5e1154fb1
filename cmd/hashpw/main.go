// Command hashpw reads a password from stdin and prints its bcrypt hash.
//
// With -username it builds a full credential record instead, printed as JSON
// or, with -database-url, inserted into the credentials table.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	domain "tokenauth/backend/internal/domain/auth"
	"tokenauth/backend/internal/infrastructure/postgres"
	"tokenauth/backend/internal/usecase/credential"

	"github.com/sirupsen/logrus"
)

type options struct {
	cost     int
	username string
	fullName string
	email    string
	disabled bool
	// seed stores the record; nil prints it.
	seed func(ctx context.Context, rec domain.CredentialRecord) (int64, error)
}

type recordOutput struct {
	Username     string `json:"username"`
	FullName     string `json:"full_name,omitempty"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"password_hash"`
	Disabled     bool   `json:"disabled"`
}

func main() {
	var opts options
	var databaseURL string
	flag.IntVar(&opts.cost, "cost", domain.DefaultHashCost, "bcrypt cost factor")
	flag.StringVar(&opts.username, "username", "", "build a credential record for this username")
	flag.StringVar(&opts.fullName, "full-name", "", "full name for the record")
	flag.StringVar(&opts.email, "email", "", "email for the record")
	flag.BoolVar(&opts.disabled, "disabled", false, "mark the record disabled")
	flag.StringVar(&databaseURL, "database-url", "", "insert the record into this database instead of printing it")
	flag.Parse()

	ctx := context.Background()
	if databaseURL != "" {
		db, err := postgres.New(ctx, databaseURL)
		if err != nil {
			logrus.WithError(err).Fatal("hashpw failed")
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logrus.WithError(err).Fatal("hashpw failed")
		}
		opts.seed = func(ctx context.Context, rec domain.CredentialRecord) (int64, error) {
			return postgres.SeedCredentials(ctx, db.Pool, []domain.CredentialRecord{rec})
		}
	}

	if err := run(ctx, os.Stdin, os.Stdout, opts); err != nil {
		logrus.WithError(err).Fatal("hashpw failed")
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer, opts options) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	provisioner := credential.NewProvisioner(opts.cost)

	if opts.username == "" {
		if opts.seed != nil {
			return errors.New("-database-url requires -username")
		}
		hash, err := provisioner.HashPassword(password)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, hash)
		return err
	}

	rec, err := provisioner.NewRecord(credential.Input{
		Username: opts.username,
		FullName: opts.fullName,
		Email:    opts.email,
		Password: password,
		Disabled: opts.disabled,
	})
	if err != nil {
		return err
	}

	if opts.seed != nil {
		inserted, err := opts.seed(ctx, rec)
		if err != nil {
			return fmt.Errorf("seed credential: %w", err)
		}
		if inserted == 0 {
			_, err = fmt.Fprintf(out, "%s already exists\n", rec.Username)
			return err
		}
		_, err = fmt.Fprintf(out, "inserted %s\n", rec.Username)
		return err
	}

	return json.NewEncoder(out).Encode(recordOutput{
		Username:     rec.Username,
		FullName:     rec.FullName,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		Disabled:     rec.Disabled,
	})
}
