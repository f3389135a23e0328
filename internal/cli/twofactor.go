package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dkozyrev/jobport/internal/common"
)

// EnableTwoFactor walks the user through TOTP enrollment: provision a
// secret, show the otpauth URI for the authenticator app, then demand a
// valid code before the factor is activated.
func (a *App) EnableTwoFactor(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Println("Log in first.")
		return nil
	}

	w := a.twoFactorService.NewEnrollment()

	enr, err := w.Begin(ctx)
	if err != nil {
		if a.handleRejection(ctx, err) {
			return nil
		}
		log.Printf("Could not start 2FA setup: %s", err.Error())
		return nil
	}

	fmt.Println("Scan this URI with your authenticator app:")
	fmt.Println()
	fmt.Printf("  %s\n", enr.ProvisioningURI)
	fmt.Println()
	fmt.Printf("Or enter the secret manually: %s\n", enr.Secret)

	ack, err := getSimpleText(a.reader, "Press Enter when the account is added (type 'cancel' to abort)", os.Stdout)
	if err != nil {
		return err
	}
	if ack == "cancel" {
		w.Cancel()
		fmt.Println("Setup cancelled. Two-factor authentication stays off.")
		return nil
	}

	if err := w.AdvanceToVerify(); err != nil {
		return err
	}

	for {
		code, err := getOneTimeCode(a.reader, os.Stdout)
		if err != nil {
			return err
		}
		if code == "" {
			w.Cancel()
			fmt.Println("Setup cancelled. Two-factor authentication stays off.")
			return nil
		}

		err = w.Activate(ctx, code)
		if err == nil {
			fmt.Println("Two-factor authentication is now enabled.")
			return nil
		}
		if errors.Is(err, common.ErrInvalidOneTimeCode) {
			log.Printf("Code rejected: %s", err.Error())
			continue
		}
		if a.handleRejection(ctx, err) {
			return nil
		}
		return err
	}
}

// DisableTwoFactor removes the TOTP factor after the user proves
// possession of the authenticator with a current code.
func (a *App) DisableTwoFactor(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Println("Log in first.")
		return nil
	}

	code, err := getOneTimeCode(a.reader, os.Stdout)
	if err != nil {
		return err
	}
	if code == "" {
		fmt.Println("Cancelled. Two-factor authentication stays on.")
		return nil
	}

	if err := a.twoFactorService.Disable(ctx, code); err != nil {
		if errors.Is(err, common.ErrInvalidOneTimeCode) {
			log.Printf("Code rejected: %s", err.Error())
			return nil
		}
		if a.handleRejection(ctx, err) {
			return nil
		}
		return err
	}

	fmt.Println("Two-factor authentication is now disabled.")
	return nil
}
