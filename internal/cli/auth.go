package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dkozyrev/jobport/internal/common"
)

// getSimpleText, getPassword and getOneTimeCode are indirections used to
// facilitate testing. They point to interactive input helpers and can be
// swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword
var getOneTimeCode = GetOneTimeCode

// Login prompts the user for credentials and tries to authenticate.
//
// If the account demands a second factor, the method keeps prompting for
// one-time codes until the server accepts one or the user enters an
// empty line, which abandons the attempt. Wrong credentials and wrong
// codes are reported and leave the user free to retry.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	outcome, err := a.authService.Login(ctx, email, string(password))
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			log.Printf("Login unsuccessfull: %s", err.Error())
			return nil
		}
		if errors.Is(err, common.ErrUnavailable) {
			log.Printf("Server unavailable: %s", err.Error())
			a.setMode(ModeOffline)
			return nil
		}
		return err
	}

	if outcome.SecondFactorRequired {
		if err := a.stepUp(ctx); err != nil {
			return err
		}
	} else {
		log.Printf("Login successfull")
	}

	a.setMode(ModeOnline)
	return nil
}

// stepUp completes a pending second-factor challenge interactively.
func (a *App) stepUp(ctx context.Context) error {
	fmt.Println("This account is protected by two-factor authentication.")

	for {
		code, err := getOneTimeCode(a.reader, os.Stdout)
		if err != nil {
			return err
		}
		if code == "" {
			a.authService.AbandonLogin()
			fmt.Println("Login cancelled.")
			return nil
		}

		_, err = a.authService.VerifyTOTP(ctx, code)
		if err == nil {
			log.Printf("Login successfull")
			return nil
		}
		if errors.Is(err, common.ErrInvalidOneTimeCode) {
			log.Printf("Code rejected: %s", err.Error())
			continue
		}
		return err
	}
}

// Logout invalidates the current session server-side and always clears
// the local credential, even when the server cannot be reached.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

// LogoutAll asks the server to revoke every session of the account. The
// local credential is kept if the server call fails.
func (a *App) LogoutAll(ctx context.Context) error {
	if err := a.authService.LogoutAll(ctx); err != nil {
		log.Printf("Logout everywhere failed: %s", err.Error())
		return nil
	}
	fmt.Println("Logged out on all devices.")
	return nil
}

// Whoami prints the cached subject snapshot.
func (a *App) Whoami() {
	cred, ok := a.store.Current()
	if !ok {
		fmt.Println("Not logged in.")
		return
	}
	s := cred.Subject
	fmt.Printf("%s <%s>\n", s.Name, s.Email)
	fmt.Printf("  email verified:     %v\n", s.EmailVerified)
	fmt.Printf("  phone verified:     %v\n", s.PhoneVerified)
	fmt.Printf("  two-factor enabled: %v\n", s.TwoFactorEnabled)
}

// Deactivate permanently deactivates the account after re-entering the
// password. The local session is cleared on success.
func (a *App) Deactivate(ctx context.Context) error {
	confirm, err := getSimpleText(a.reader, "Type 'yes' to permanently deactivate this account", os.Stdout)
	if err != nil {
		return err
	}
	if confirm != "yes" {
		fmt.Println("Aborted.")
		return nil
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.accountService.Deactivate(ctx, string(password)); err != nil {
		if a.handleRejection(ctx, err) {
			return nil
		}
		log.Printf("Deactivation failed: %s", err.Error())
		return nil
	}
	fmt.Println("Account deactivated.")
	return nil
}

// handleRejection funnels errors from authenticated calls through the
// central forced-logout reaction. Returns true when the session was
// rejected and cleared.
func (a *App) handleRejection(ctx context.Context, err error) bool {
	if a.authService.HandleRejectedCredential(ctx, err) {
		fmt.Println("Your session was rejected by the server. Please log in again.")
		return true
	}
	return false
}
