package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/recetas/recetas/internal/model"
)

var (
	authEmail    string
	authPassword string
	signUpRole   string
)

func init() {
	for _, cmd := range []*cobra.Command{signUpCmd, signInCmd} {
		cmd.Flags().StringVarP(&authEmail, "email", "e", "", "account email")
		cmd.Flags().StringVarP(&authPassword, "password", "p", "", "account password (read from stdin when omitted)")
		_ = cmd.MarkFlagRequired("email")
	}
	signUpCmd.Flags().StringVarP(&signUpRole, "role", "r", string(model.RoleUser), "account role: chef or user")
}

// recetas signup
var signUpCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		role := model.Role(strings.ToLower(signUpRole))
		if !role.IsValid() {
			return fmt.Errorf("role must be %q or %q", model.RoleChef, model.RoleUser)
		}
		password, err := readPassword(a, authPassword)
		if err != nil {
			return err
		}

		identity, err := check(a.auth.Register(ctx, authEmail, password, role))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Account created for %s (%s).\n", identity.Email, role)
		return nil
	}),
}

// recetas signin
var signInCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in and remember the session",
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		password, err := readPassword(a, authPassword)
		if err != nil {
			return err
		}
		if _, err := check(a.auth.SignIn(ctx, authEmail, password)); err != nil {
			return err
		}

		user := a.auth.GetCurrentUser(ctx)
		if user == nil {
			fmt.Fprintln(a.out, "Signed in.")
			return nil
		}
		fmt.Fprintf(a.out, "Signed in as %s (%s).\n", user.Email, user.Role)
		return nil
	}),
}

// recetas signout
var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and forget the session",
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		if _, err := check(a.auth.SignOut(ctx)); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Signed out.")
		return nil
	}),
}

// recetas whoami
var whoAmICmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in profile",
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		user := a.auth.GetCurrentUser(ctx)
		if user == nil {
			return errNotSignedIn
		}
		return a.printJSON(user)
	}),
}

// recetas watch
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the session fresh and print auth state changes until interrupted",
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		changes := make(chan *model.User, 8)
		sub := a.auth.OnAuthStateChange(func(u *model.User) {
			select {
			case changes <- u:
			case <-ctx.Done():
			}
		})
		defer sub.Unsubscribe()

		fmt.Fprintln(a.out, "Watching auth changes (Ctrl+C to stop).")
		timer := time.NewTimer(a.untilRefresh(ctx))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case u := <-changes:
				printAuthChange(a.out, u)
			case <-timer.C:
				if result := a.auth.RefreshSession(ctx, ""); !result.Ok() {
					fmt.Fprintf(a.out, "%s  refresh failed: %s\n", time.Now().Format(time.TimeOnly), result.Err())
				}
				timer.Reset(a.untilRefresh(ctx))
			}
		}
	}),
}

// minRefreshWait spaces out retries while refreshes keep failing.
const minRefreshWait = 30 * time.Second

var errNotSignedIn = errors.New("not signed in (run recetas signin)")

// untilRefresh returns how long to wait before renewing the stored session.
func (a *app) untilRefresh(ctx context.Context) time.Duration {
	const idle = time.Hour
	session, err := a.store.Load(ctx)
	if err != nil || session == nil || session.ExpiresAt == 0 {
		return idle
	}
	wait := time.Until(time.Unix(session.ExpiresAt, 0)) - refreshLeeway
	if wait < minRefreshWait {
		return minRefreshWait
	}
	return wait
}

func printAuthChange(w io.Writer, u *model.User) {
	stamp := time.Now().Format(time.TimeOnly)
	if u == nil {
		fmt.Fprintf(w, "%s  signed out\n", stamp)
		return
	}
	fmt.Fprintf(w, "%s  signed in as %s (%s)\n", stamp, u.Email, u.Role)
}

// readPassword returns flagValue or, when empty, one line of stdin.
func readPassword(a *app, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(a.errOut, "Password: ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}
