package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fieldfiller/stegano"
	"github.com/fieldfiller/stegano/internal/config"
	"github.com/fieldfiller/stegano/internal/revocation"
	"github.com/fieldfiller/stegano/internal/signing"
	"github.com/fieldfiller/stegano/internal/store"
	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/sirupsen/logrus"
)

// newStegano builds the façade, with algo overriding the configured algorithm
func (a *app) newStegano(cfg config.Config, algo string) (*stegano.Stegano, *logrus.Logger, error) {
	if algo != "" {
		cfg.Algorithm = algo
	}
	log, err := cfg.Logger()
	if err != nil {
		return nil, nil, err
	}
	sc, err := cfg.SteganoConfig(log)
	if err != nil {
		return nil, nil, err
	}
	s, err := stegano.New(sc)
	if err != nil {
		return nil, nil, err
	}
	return s, log, nil
}

func (a *app) keyRing() (*stegano.KeyRing, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg.KeyRing()
}

// openStore opens the records on the host disk; badger does not go through a.fs
func (a *app) openStore(cfg config.Config, log *logrus.Logger) (*store.Store, error) {
	return store.Open(cfg.StoreConfig(log))
}

// signingService wires the signing service from the configuration. The
// returned func releases the pool and the store.
func (a *app) signingService(algo string) (*signing.Service, *store.Store, func(), error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	s, log, err := a.newStegano(cfg, algo)
	if err != nil {
		return nil, nil, nil, err
	}
	ring, err := cfg.KeyRing()
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := stegano.NewPool(s, cfg.ParallelConfig(log))
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := a.openStore(cfg, log)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	closeAll := func() {
		pool.Close()
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("error closing store")
		}
	}

	svc, err := signing.New(signing.Config{
		Cipher:      ring,
		Engine:      pool,
		Records:     st,
		Revocations: revocation.NewSet(cfg.TokenTTL, nil),
		Logger:      log,
	})
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	return svc, st, closeAll, nil
}

func required(flags ...string) error {
	for i := 0; i < len(flags); i += 2 {
		if flags[i+1] == "" {
			return fmt.Errorf("-%s is required", flags[i])
		}
	}
	return nil
}

func (a *app) keygenCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "keygen",
		ShortUsage: "stegano keygen",
		ShortHelp:  "Print a random master key in hex",
		FlagSet:    flag.NewFlagSet("stegano keygen", flag.ContinueOnError),
		Exec: func(context.Context, []string) error {
			key, err := stegano.GenerateMasterKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, key)
			return nil
		},
	}
}

func (a *app) hideCommand() *ffcli.Command {
	fs := flag.NewFlagSet("stegano hide", flag.ContinueOnError)
	in := fs.String("in", "", "cover image")
	out := fs.String("out", "", "output image; the extension selects the format")
	msg := fs.String("message", "", "text to hide")
	algo := fs.String("algo", "", "f5, dct or qim")

	return &ffcli.Command{
		Name:       "hide",
		ShortUsage: "stegano hide -in cover.png -out stego.png -message text",
		ShortHelp:  "Hide a message in an image",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			if err := required("in", *in, "out", *out); err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			s, _, err := a.newStegano(cfg, *algo)
			if err != nil {
				return err
			}
			if err := s.HideFile(a.fs, *in, *out, *msg); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "wrote %s\n", *out)
			return nil
		},
	}
}

func (a *app) revealCommand() *ffcli.Command {
	fs := flag.NewFlagSet("stegano reveal", flag.ContinueOnError)
	in := fs.String("in", "", "stego image")
	algo := fs.String("algo", "", "f5, dct or qim")

	return &ffcli.Command{
		Name:       "reveal",
		ShortUsage: "stegano reveal -in stego.png",
		ShortHelp:  "Print the message hidden in an image",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			if err := required("in", *in); err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			s, _, err := a.newStegano(cfg, *algo)
			if err != nil {
				return err
			}
			msg, err := s.RevealFile(a.fs, *in)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, msg)
			return nil
		},
	}
}

func (a *app) capacityCommand() *ffcli.Command {
	fs := flag.NewFlagSet("stegano capacity", flag.ContinueOnError)
	in := fs.String("in", "", "cover image")
	algo := fs.String("algo", "", "f5, dct or qim")

	return &ffcli.Command{
		Name:       "capacity",
		ShortUsage: "stegano capacity -in cover.png",
		ShortHelp:  "Report how much text an image can carry",
		FlagSet:    fs,
		Exec: func(context.Context, []string) error {
			if err := required("in", *in); err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			s, _, err := a.newStegano(cfg, *algo)
			if err != nil {
				return err
			}
			bits, err := s.CapacityFile(a.fs, *in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: %s bits (%s) with %s\n",
				*in, humanize.Comma(int64(bits)), humanize.Bytes(uint64(bits/8)), s.Algorithm())
			return nil
		},
	}
}

func (a *app) encryptCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "encrypt",
		ShortUsage: "stegano encrypt <user-id>",
		ShortHelp:  "Seal a user ID into an embeddable payload",
		FlagSet:    flag.NewFlagSet("stegano encrypt", flag.ContinueOnError),
		Exec: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}
			ring, err := a.keyRing()
			if err != nil {
				return err
			}
			payload, err := ring.EncryptIdentifier(id)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, payload)
			return nil
		},
	}
}

func (a *app) decryptCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "decrypt",
		ShortUsage: "stegano decrypt <payload>",
		ShortHelp:  "Open a payload with the current or a previous master key",
		FlagSet:    flag.NewFlagSet("stegano decrypt", flag.ContinueOnError),
		Exec: func(_ context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			ring, err := a.keyRing()
			if err != nil {
				return err
			}
			plain, err := ring.DecryptIdentifier(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, plain)
			return nil
		},
	}
}

func (a *app) useraddCommand() *ffcli.Command {
	fs := flag.NewFlagSet("stegano useradd", flag.ContinueOnError)
	login := fs.String("login", "", "unique login")
	first := fs.String("first-name", "", "first name")
	last := fs.String("last-name", "", "last name")
	password := fs.String("password", "", "password (or STEGANO_PASSWORD)")

	return &ffcli.Command{
		Name:       "useradd",
		ShortUsage: "stegano useradd -login name -first-name A -last-name B -password pw",
		ShortHelp:  "Register a user who can sign images",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(context.Context, []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			log, err := cfg.Logger()
			if err != nil {
				return err
			}
			st, err := a.openStore(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := st.CreateUser(store.UserInput{
				FirstName: *first,
				LastName:  *last,
				Login:     *login,
				Password:  *password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "created user %d (%s)\n", user.ID, user.Login)
			return nil
		},
	}
}

func (a *app) signCommand() *ffcli.Command {
	fs := flag.NewFlagSet("stegano sign", flag.ContinueOnError)
	login := fs.String("login", "", "login of the signing user")
	password := fs.String("password", "", "password (or STEGANO_PASSWORD)")
	in := fs.String("in", "", "cover image")
	out := fs.String("out", "", "output image (default "+signing.Filename+".png)")
	algo := fs.String("algo", "", "f5, dct or qim")

	return &ffcli.Command{
		Name:       "sign",
		ShortUsage: "stegano sign -login name -password pw -in cover.png [-out signed.png]",
		ShortHelp:  "Hide the encrypted ID of a user in an image and record it",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(ctx context.Context, _ []string) error {
			if err := required("login", *login, "in", *in); err != nil {
				return err
			}
			dst := *out
			if dst == "" {
				dst = signing.Filename + "." + stegano.FormatPNG.Extension()
			}
			format, err := stegano.FormatFromPath(dst)
			if err != nil {
				return err
			}

			svc, st, done, err := a.signingService(*algo)
			if err != nil {
				return err
			}
			defer done()

			user, err := st.Authenticate(*login, *password)
			if err != nil {
				return err
			}
			cover, err := stegano.ReadImageFile(a.fs, *in)
			if err != nil {
				return err
			}

			sess := signing.Session{Token: uuid.NewString(), UserID: user.ID}
			signed, err := svc.Sign(ctx, sess, cover, format)
			if err != nil {
				return err
			}
			if err := stegano.WriteImageFile(a.fs, dst, signed.Data); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "signed %s as %s: signature %s\n", dst, user.Login, signed.Signature.ID)
			return svc.Logout(sess)
		},
	}
}

func (a *app) verifyCommand() *ffcli.Command {
	fs := flag.NewFlagSet("stegano verify", flag.ContinueOnError)
	in := fs.String("in", "", "signed image")
	algo := fs.String("algo", "", "f5, dct or qim")

	return &ffcli.Command{
		Name:       "verify",
		ShortUsage: "stegano verify -in signed.png",
		ShortHelp:  "Print the user who signed an image",
		FlagSet:    fs,
		Exec: func(ctx context.Context, _ []string) error {
			if err := required("in", *in); err != nil {
				return err
			}
			svc, _, done, err := a.signingService(*algo)
			if err != nil {
				return err
			}
			defer done()

			image, err := stegano.ReadImageFile(a.fs, *in)
			if err != nil {
				return err
			}
			user, err := svc.Verify(ctx, image)
			if errors.Is(err, store.ErrUserNotFound) {
				return fmt.Errorf("image was signed by a user that no longer exists: %w", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "signed by %s %s (%s, id %d)\n", user.FirstName, user.LastName, user.Login, user.ID)
			return nil
		},
	}
}
