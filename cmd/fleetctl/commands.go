package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"fleetops.io/internal/auth"
	"fleetops.io/internal/catalog"
	"fleetops.io/internal/config"
	"fleetops.io/internal/idcodec"
	"fleetops.io/internal/store/pg"
	sessions "fleetops.io/internal/store/redis"
)

func loadCodec() (*idcodec.Codec, error) {
	cfg, err := config.Load(".env")
	if err != nil {
		return nil, err
	}
	return idcodec.New([]byte(cfg.IDs.Secret))
}

func cmdEncode(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: fleetctl encode <id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("id must be a positive integer: %q", args[0])
	}
	codec, err := loadCodec()
	if err != nil {
		return err
	}
	token, err := codec.Encode(id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func cmdDecode(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: fleetctl decode <token>")
	}
	codec, err := loadCodec()
	if err != nil {
		return err
	}
	id, err := codec.Decode(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, id)
	return err
}

func cmdSessionIssue(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("session issue", pflag.ContinueOnError)
	user := fs.Int64("user", 0, "user id the session belongs to")
	ttl := fs.Duration("ttl", 0, "session lifetime (defaults to session.ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user <= 0 {
		return errors.New("--user is required")
	}
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if *ttl <= 0 {
		*ttl = cfg.Session.TTL
	}
	tokens, err := auth.NewTokenIssuer([]byte(cfg.Session.Secret), cfg.Session.Issuer)
	if err != nil {
		return err
	}
	token, sid, expiresAt, err := tokens.Issue(*user, *ttl)
	if err != nil {
		return err
	}
	rdb, err := sessions.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	if err := sessions.NewSessionStore(rdb, cfg.Redis.SessionPrefix).Activate(ctx, sid, *user, *ttl); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "session_id=%s\nexpires_at=%s\ntoken=%s\n", sid, expiresAt.UTC().Format(time.RFC3339), token)
	return err
}

func cmdSessionRevoke(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: fleetctl session revoke <session-id>")
	}
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	rdb, err := sessions.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	if err := sessions.NewSessionStore(rdb, cfg.Redis.SessionPrefix).Revoke(ctx, args[0]); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, "revoked", args[0])
	return err
}

func cmdBootstrap(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("bootstrap", pflag.ContinueOnError)
	orgName := fs.String("org", "", "organization name")
	email := fs.String("email", "", "owner email")
	name := fs.String("name", "", "owner display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *orgName == "" || *email == "" {
		return errors.New("--org and --email are required")
	}
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	codec, err := idcodec.New([]byte(cfg.IDs.Secret))
	if err != nil {
		return err
	}
	store, err := pg.Open(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	org, err := store.CreateOrganization(ctx, *orgName)
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	owner, err := store.EnsureUser(ctx, *email, *name)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	rbac, err := auth.NewRBACService(store, catalog.Default())
	if err != nil {
		return err
	}
	roles, err := rbac.Provision(ctx, org.ID, owner.ID)
	if err != nil {
		return err
	}
	orgToken, err := codec.Encode(org.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "organization %d token=%s\nowner user %d\n", org.ID, orgToken, owner.ID)
	for _, r := range roles {
		token, err := codec.Encode(r.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "role %-12s token=%s permissions=%d\n", r.Name, token, len(r.Permissions))
	}
	return nil
}
