package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/lodestone/internal/launcher"
	"github.com/florianilch/lodestone/internal/persist"
	"github.com/florianilch/lodestone/internal/session"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "store a session for tokens issued by the identity provider",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "session-id",
				Usage:    "game session id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "sub",
				Usage: "subject claim; derived from --id-token when omitted",
			},
			&cli.StringFlag{
				Name:  "access-token",
				Usage: "access token; prompted for when omitted",
			},
			&cli.StringFlag{
				Name:  "refresh-token",
				Usage: "refresh token",
			},
			&cli.StringFlag{
				Name:  "id-token",
				Usage: "OpenID Connect id token",
			},
			&cli.DurationFlag{
				Name:  "expires-in",
				Usage: "access token lifetime",
			},
		},
		Action: withLauncher(loginAction),
	}
}

func loginAction(ctx context.Context, cmd *cli.Command, svc *launcher.Service) error {
	accessToken := cmd.String("access-token")
	if accessToken == "" {
		var err error
		accessToken, err = promptSecret(cmd.Root().Writer, "Access token: ")
		if err != nil {
			return err
		}
	}

	tokens := session.AuthTokens{
		Sub:          cmd.String("sub"),
		AccessToken:  accessToken,
		RefreshToken: cmd.String("refresh-token"),
		IDToken:      cmd.String("id-token"),
		TokenType:    "Bearer",
		Expiry:       expiryFrom(time.Now(), cmd.Duration("expires-in")),
		SessionID:    cmd.String("session-id"),
	}

	sess, err := svc.Login(ctx, tokens, tokens.SessionID)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := awaitSave(svc.SaveConfig(ctx, true)); err != nil {
		return err
	}
	if err := svc.SaveCredentials(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "logged in as %s (%s), %d game account(s)\n",
		sess.User.DisplayName, sess.UserID(), len(sess.Accounts))
	return nil
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:      "logout",
		Usage:     "remove a session and revoke its access token",
		ArgsUsage: "<user-id>",
		Action:    withLauncher(logoutAction),
	}
}

func logoutAction(ctx context.Context, cmd *cli.Command, svc *launcher.Service) error {
	userID, err := userIDArg(cmd)
	if err != nil {
		return err
	}

	remaining, found := svc.Logout(ctx, userID)
	if !found {
		fmt.Fprintf(cmd.Root().Writer, "no session for %s\n", userID)
		return nil
	}

	if err := awaitSave(svc.SaveConfig(ctx, false)); err != nil {
		return err
	}
	if err := svc.SaveCredentials(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "logged out %s, %d session(s) remaining\n", userID, len(remaining))
	return nil
}

func accountsCommand() *cli.Command {
	return &cli.Command{
		Name:   "accounts",
		Usage:  "list stored sessions and their game accounts",
		Action: withLauncher(accountsAction),
	}
}

func accountsAction(_ context.Context, cmd *cli.Command, svc *launcher.Service) error {
	printSessions(cmd.Root().Writer, svc)
	return nil
}

func printSessions(w io.Writer, svc *launcher.Service) {
	sessions := svc.Sessions()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no sessions")
		return
	}

	selected, hasSelected := svc.SelectedSession()
	for _, sess := range sessions {
		marker := " "
		if hasSelected && sess.UserID() == selected.UserID() {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\n", marker, sess.UserID(), sess.User.DisplayName)
		for _, account := range sess.Accounts {
			fmt.Fprintf(w, "    %s\t%s\n", account.AccountID, account.DisplayName)
		}
	}
}

func selectCommand() *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "select the active user",
		ArgsUsage: "<user-id>",
		Action:    withLauncher(selectAction),
	}
}

func selectAction(ctx context.Context, cmd *cli.Command, svc *launcher.Service) error {
	userID, err := userIDArg(cmd)
	if err != nil {
		return err
	}
	if err := svc.Select(userID); err != nil {
		return err
	}
	if err := awaitSave(svc.SaveConfig(ctx, false)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "selected %s\n", userID)
	return nil
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:      "refresh",
		Usage:     "refresh the tokens of a session once they have expired",
		ArgsUsage: "<user-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "refresh even if the access token is still valid",
			},
		},
		Action: withLauncher(refreshAction),
	}
}

func refreshAction(ctx context.Context, cmd *cli.Command, svc *launcher.Service) error {
	userID, err := userIDArg(cmd)
	if err != nil {
		return err
	}

	var sess session.Session
	refreshed := true
	if cmd.Bool("force") {
		sess, err = svc.Refresh(ctx, userID)
	} else {
		sess, refreshed, err = svc.RefreshExpired(ctx, userID, time.Now())
	}
	if err != nil {
		return err
	}

	if !refreshed {
		fmt.Fprintf(cmd.Root().Writer, "token of %s still valid, expires %s\n", sess.UserID(), formatExpiry(sess.Tokens.Expiry))
		return nil
	}
	fmt.Fprintf(cmd.Root().Writer, "refreshed %s, token expires %s\n", sess.UserID(), formatExpiry(sess.Tokens.Expiry))
	return nil
}

func pickJarCommand() *cli.Command {
	return &cli.Command{
		Name:   "pick-jar",
		Usage:  "pick a custom RuneLite jar",
		Action: withLauncher(pickJarAction),
	}
}

func pickJarAction(ctx context.Context, cmd *cli.Command, svc *launcher.Service) error {
	path, ok := svc.PickRuneLiteJar(ctx)
	if !ok {
		fmt.Fprintln(cmd.Root().Writer, "no file selected")
		return nil
	}
	if err := awaitSave(svc.SaveConfig(ctx, false)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "RuneLite jar set to %s\n", path)
	return nil
}

// awaitSave waits for a save request. Only failures are errors; skipped
// saves are picked up by the final flush.
func awaitSave(done <-chan persist.Result) error {
	res := <-done
	if res.Status == persist.StatusFailed {
		return fmt.Errorf("saving %s: %w", res.Kind, res.Err)
	}
	return nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}

// promptSecret reads a line from the terminal without echo.
func promptSecret(w io.Writer, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal to prompt for the access token, pass --access-token")
	}

	fmt.Fprint(w, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
